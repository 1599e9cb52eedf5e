package tui

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/capture"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/mjpeg"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	maxCopies     = 10
	eventBuffer   = 32
	loadTimeout   = 10 * time.Second
	quitReleaseIn = 5 * time.Second
)

// Backend is what the kiosk needs from the camera backend.
type Backend interface {
	capture.Backend
	AvailableLayouts(ctx context.Context) ([]booth.Layout, error)
	Config(ctx context.Context) (*booth.BoothConfig, error)
	SetLayout(ctx context.Context, layout booth.Layout) error
	StreamURL() string
}

// Options tune the capture machine behind the kiosk.
type Options struct {
	AutoStart bool
	// InitialDelay overrides the first countdown of an auto-started session; negative keeps the config.
	InitialDelay int
	PrintArgs    []string
	HTTPClient   *http.Client
	Clock        capture.Clock
}

// DefaultOptions returns the kiosk defaults.
func DefaultOptions() Options {
	return Options{AutoStart: true, InitialDelay: -1}
}

type screen int

const (
	screenLoading screen = iota
	screenWelcome
	screenCapture
)

// Model is the kiosk's bubbletea model.
type Model struct {
	ctx     context.Context
	backend Backend
	opts    Options

	screen  screen
	cfg     *booth.BoothConfig
	layouts []booth.Layout
	cursor  int
	busy    bool
	err     error

	machine *capture.Machine
	view    *capture.View
	unsub   func()
	frame   capture.Frame
	copies  int

	preview     string
	previewInfo mjpeg.Frame
	snapPath    string
	snapArt     string

	events  chan tea.Msg
	binder  *previewBinder
	spinner spinner.Model
	help    help.Model
	wkeys   welcomeKeys
	ckeys   captureKeys
	dkeys   dialogKeys
	width   int
	height  int
}

// New creates the kiosk model. ctx bounds every backend call made by the model.
func New(ctx context.Context, backend Backend, opts Options) Model {
	events := make(chan tea.Msg, eventBuffer)
	return Model{
		ctx:     ctx,
		backend: backend,
		opts:    opts,
		screen:  screenLoading,
		copies:  1,
		events:  events,
		binder:  newPreviewBinder(opts.HTTPClient, events),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(CapturingStyle)),
		help:    help.New(),
		wkeys:   newWelcomeKeys(),
		ckeys:   newCaptureKeys(),
		dkeys:   newDialogKeys(),
	}
}

// Run starts the kiosk full screen and blocks until it quits.
func Run(ctx context.Context, backend Backend, opts Options) error {
	p := tea.NewProgram(
		New(ctx, backend, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run kiosk")
	}
	return nil
}

// Init loads the catalog and starts listening for machine events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadConfig(), m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) loadConfig() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()

		cfg, err := backend.Config(ctx)
		if err != nil {
			return configLoadedMsg{err: errors.Wrap(err, "load booth config")}
		}
		layouts, err := backend.AvailableLayouts(ctx)
		if err != nil {
			return configLoadedMsg{err: errors.Wrap(err, "load layouts")}
		}
		return configLoadedMsg{cfg: cfg, layouts: layouts}
	}
}

func (m Model) newMachine(cfg booth.BoothConfig) *capture.Machine {
	events := m.events
	nav := capture.NavigatorFunc(func() {
		// Runs on the machine goroutine; the send must not block it.
		go func() { events <- homeMsg{} }()
	})

	opts := []capture.Option{
		capture.WithReleaser(m.binder),
		capture.WithAutoStart(m.opts.AutoStart),
		capture.WithInitialDelay(m.opts.InitialDelay),
	}
	if len(m.opts.PrintArgs) > 0 {
		opts = append(opts, capture.WithPrintArgs(m.opts.PrintArgs...))
	}
	if m.opts.Clock != nil {
		opts = append(opts, capture.WithClock(m.opts.Clock))
	}
	return capture.New(m.backend, nav, cfg, m.backend.StreamURL(), opts...)
}

// mount activates layout on the backend and enters the capture screen.
func (m Model) mount(layout booth.Layout) tea.Cmd {
	ctx, backend, machine, binder, events := m.ctx, m.backend, m.machine, m.binder, m.events
	return func() tea.Msg {
		setCtx, cancel := context.WithTimeout(ctx, loadTimeout)
		err := backend.SetLayout(setCtx, layout)
		cancel()
		if err != nil {
			return mountedMsg{err: errors.Wrap(err, "activate layout")}
		}

		view, err := machine.Mount(ctx, &layout)
		if err != nil {
			return mountedMsg{err: err}
		}
		return mountedMsg{view: view, unsub: watchView(view, binder, events)}
	}
}

// watchView forwards signal changes into the program. Subscribers run on the machine
// goroutine, so the sends never block.
func watchView(v *capture.View, binder *previewBinder, events chan<- tea.Msg) func() {
	notify := func() {
		select {
		case events <- viewChangedMsg{}:
		default:
		}
	}

	unsubs := []func(){
		binder.bind(v.ActiveStream),
		v.CountDownActive.Subscribe(func(bool) { notify() }),
		v.CaptureActive.Subscribe(func(bool) { notify() }),
		v.CountDownRemaining.Subscribe(func(int) { notify() }),
		v.ActiveStream.Subscribe(func(string) { notify() }),
		v.ActiveSnapshot.Subscribe(func(*booth.SnapshotResponse) { notify() }),
		v.PrintDialogOpen.Subscribe(func(bool) { notify() }),
		v.Error.Subscribe(func(string) { notify() }),
		v.State.Subscribe(func(capture.State) { notify() }),
	}
	notify()

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func gesture(name string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return gestureMsg{name: name, err: fn()}
	}
}

func renderSnapshot(snap *booth.SnapshotResponse, width int) tea.Cmd {
	return func() tea.Msg {
		img, err := decodeDataURI(snap.ImageB64)
		if err != nil {
			return snapshotArtMsg{path: snap.ImagePath, err: err}
		}
		return snapshotArtMsg{path: snap.ImagePath, art: renderArt(img, width)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.binder.setWidth(msg.Width)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case configLoadedMsg:
		m.busy = false
		if msg.err != nil {
			slog.Error("kiosk_config_failed", "error", msg.err)
			m.err = msg.err
			m.screen = screenWelcome
			return m, nil
		}
		m.err = nil
		m.cfg = msg.cfg
		m.layouts = msg.layouts
		if m.cursor >= len(m.layouts) {
			m.cursor = 0
		}
		if m.machine == nil {
			m.machine = m.newMachine(*msg.cfg)
		}
		m.screen = screenWelcome
		slog.Info("kiosk_ready", "layouts", len(msg.layouts), "title", msg.cfg.BoothTitle)
		return m, nil

	case mountedMsg:
		m.busy = false
		if msg.err != nil {
			slog.Error("kiosk_mount_failed", "error", msg.err)
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.view = msg.view
		m.unsub = msg.unsub
		m.frame = msg.view.Frame()
		m.copies = 1
		m.screen = screenCapture
		return m, nil

	case gestureMsg:
		if msg.err != nil && !errors.Is(msg.err, capture.ErrNotMounted) {
			slog.Warn("kiosk_gesture_failed", "gesture", msg.name, "error", msg.err)
			m.err = msg.err
		}
		return m, nil

	case snapshotArtMsg:
		if msg.err != nil {
			slog.Warn("kiosk_snapshot_undecodable", "image_path", msg.path, "error", msg.err)
			return m, nil
		}
		if msg.path == m.snapPath {
			m.snapArt = msg.art
		}
		return m, nil

	case viewChangedMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case previewMsg:
		m.preview = msg.art
		m.previewInfo = msg.frame
		return m, waitForEvent(m.events)

	case homeMsg:
		m.leaveCapture()
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		switch m.screen {
		case screenWelcome:
			return m.updateWelcome(msg)
		case screenCapture:
			return m.updateCapture(msg)
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

// refresh re-reads the view and renders a new review image when the snapshot changed.
func (m *Model) refresh() tea.Cmd {
	if m.view == nil {
		return nil
	}
	m.frame = m.view.Frame()
	if m.frame.Snapshot == nil {
		m.snapPath, m.snapArt = "", ""
		m.copies = 1
		return nil
	}
	if m.frame.Snapshot.ImagePath == m.snapPath {
		return nil
	}
	m.snapPath, m.snapArt = m.frame.Snapshot.ImagePath, ""
	return renderSnapshot(m.frame.Snapshot, artWidth(m.width))
}

func (m *Model) leaveCapture() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	m.view = nil
	m.frame = capture.Frame{}
	m.preview, m.previewInfo = "", mjpeg.Frame{}
	m.snapPath, m.snapArt = "", ""
	m.copies = 1
	if m.screen == screenCapture {
		m.screen = screenWelcome
	}
}

func (m Model) updateWelcome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.wkeys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.wkeys.Reload):
		m.busy = true
		return m, m.loadConfig()
	case m.busy:
		return m, nil
	case key.Matches(msg, m.wkeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.wkeys.Down):
		if m.cursor < len(m.layouts)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.wkeys.Select):
		if len(m.layouts) == 0 || m.machine == nil {
			return m, nil
		}
		layout := m.layouts[m.cursor]
		slog.Info("kiosk_layout_chosen", "layout", layout.Name, "n_images", layout.Images())
		m.busy = true
		m.err = nil
		return m, m.mount(layout)
	}
	return m, nil
}

func (m Model) updateCapture(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	machine := m.machine

	if key.Matches(msg, m.ckeys.Quit) {
		return m, tea.Sequence(func() tea.Msg {
			machine.Unmount()
			done := make(chan struct{})
			go func() { machine.Wait(); close(done) }()
			select {
			case <-done:
			case <-time.After(quitReleaseIn):
			}
			return nil
		}, tea.Quit)
	}

	if m.frame.Dialog {
		switch {
		case key.Matches(msg, m.dkeys.More):
			if m.copies < maxCopies {
				m.copies++
			}
			return m, gesture("touch", machine.Touch)
		case key.Matches(msg, m.dkeys.Less):
			if m.copies > 1 {
				m.copies--
			}
			return m, gesture("touch", machine.Touch)
		case key.Matches(msg, m.dkeys.Confirm):
			copies := m.copies
			return m, gesture("confirm_print", func() error { return machine.ConfirmPrint(copies) })
		case key.Matches(msg, m.dkeys.Dismiss):
			return m, gesture("dismiss_print", machine.DismissPrint)
		}
		return m, gesture("touch", machine.Touch)
	}

	keys := m.ckeys.forFrame(m.frame)
	switch {
	case key.Matches(msg, keys.Start):
		return m, gesture("start", machine.Start)
	case key.Matches(msg, keys.Retry):
		return m, gesture("retry", machine.Retry)
	case key.Matches(msg, keys.Print):
		m.copies = 1
		return m, gesture("request_print", machine.RequestPrint)
	case key.Matches(msg, keys.Cancel):
		return m, gesture("cancel", machine.Cancel)
	}
	return m, gesture("touch", machine.Touch)
}
