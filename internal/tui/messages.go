package tui

import (
	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/capture"
	"github.com/Zahlii/photobooth/pkg/mjpeg"
	tea "github.com/charmbracelet/bubbletea"
)

// configLoadedMsg carries the booth config and the layout catalog.
type configLoadedMsg struct {
	cfg     *booth.BoothConfig
	layouts []booth.Layout
	err     error
}

// mountedMsg reports the end of a mount attempt.
type mountedMsg struct {
	view  *capture.View
	unsub func()
	err   error
}

// gestureMsg reports the result of a gesture posted to the machine.
type gestureMsg struct {
	name string
	err  error
}

// viewChangedMsg signals that one of the view's signals changed.
type viewChangedMsg struct{}

// previewMsg is a rendered preview frame.
type previewMsg struct {
	frame mjpeg.Frame
	art   string
}

// snapshotArtMsg is the rendered review image for path.
type snapshotArtMsg struct {
	path string
	art  string
	err  error
}

// homeMsg is sent when the machine navigates back to the welcome screen.
type homeMsg struct{}

// waitForEvent blocks on the event channel shared with the machine and the preview viewer.
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}
