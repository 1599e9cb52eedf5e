package tui

import (
	"github.com/Zahlii/photobooth/pkg/capture"
	"github.com/charmbracelet/bubbles/key"
)

type welcomeKeys struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func newWelcomeKeys() welcomeKeys {
	return welcomeKeys{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "choose layout")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k welcomeKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Reload, k.Quit}
}

func (k welcomeKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// captureKeys only enables the gestures the current frame offers.
type captureKeys struct {
	Start  key.Binding
	Retry  key.Binding
	Print  key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

func newCaptureKeys() captureKeys {
	return captureKeys{
		Start:  key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "start")),
		Retry:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Print:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "print")),
		Cancel: key.NewBinding(key.WithKeys("esc", "c"), key.WithHelp("esc", "cancel")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k captureKeys) forFrame(f capture.Frame) captureKeys {
	k.Start.SetEnabled(f.Has(capture.ButtonStart))
	k.Retry.SetEnabled(f.Has(capture.ButtonRetry))
	k.Print.SetEnabled(f.Has(capture.ButtonPrint))
	k.Cancel.SetEnabled(f.Has(capture.ButtonCancel))
	return k
}

func (k captureKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Retry, k.Print, k.Cancel}
}

func (k captureKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Quit}}
}

type dialogKeys struct {
	More    key.Binding
	Less    key.Binding
	Confirm key.Binding
	Dismiss key.Binding
}

func newDialogKeys() dialogKeys {
	return dialogKeys{
		More:    key.NewBinding(key.WithKeys("+", "up", "right"), key.WithHelp("+", "more")),
		Less:    key.NewBinding(key.WithKeys("-", "down", "left"), key.WithHelp("-", "fewer")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "print")),
		Dismiss: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

func (k dialogKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.More, k.Less, k.Confirm, k.Dismiss}
}

func (k dialogKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
