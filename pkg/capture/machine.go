package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/google/uuid"
)

const defaultCallTimeout = 60 * time.Second

// Machine is the capture-screen controller. One goroutine per mount owns all session
// state; gestures, timer ticks and backend results are serialized through it.
//
// Gesture methods block until the gesture has been applied. They must not be called
// from a signal subscriber or a Navigator, which run on the machine goroutine.
type Machine struct {
	backend   Backend
	nav       Navigator
	cfg       booth.BoothConfig
	streamURL string

	clock        Clock
	releaser     Releaser
	autoStart    bool
	initialDelay int
	callTimeout  time.Duration
	printArgs    []string

	// Session state, touched only by the machine goroutine while mounted.
	session   string
	ctx       context.Context
	layout    booth.Layout
	view      *View
	stream    *StreamController
	watchdog  *Watchdog
	countdown *Countdown
	stack     Stack
	state     State
	epoch     uint64

	mu      sync.Mutex
	cmds    chan func()
	results chan result
	done    chan struct{}

	pending sync.WaitGroup
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock driving both timers.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithReleaser sets the hook that confirms the view dropped the preview connection.
func WithReleaser(r Releaser) Option {
	return func(m *Machine) { m.releaser = r }
}

// WithAutoStart controls whether the first countdown starts on mount.
func WithAutoStart(enabled bool) Option {
	return func(m *Machine) { m.autoStart = enabled }
}

// WithInitialDelay overrides the countdown of the first shot of an auto-started session.
// Later shots always use the configured per-shot countdown.
func WithInitialDelay(seconds int) Option {
	return func(m *Machine) { m.initialDelay = seconds }
}

// WithCallTimeout bounds each backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Machine) { m.callTimeout = d }
}

// WithPrintArgs passes extra arguments through to the print subsystem.
func WithPrintArgs(args ...string) Option {
	return func(m *Machine) { m.printArgs = args }
}

// New creates an unmounted machine.
func New(backend Backend, nav Navigator, cfg booth.BoothConfig, streamURL string, opts ...Option) *Machine {
	m := &Machine{
		backend:      backend,
		nav:          nav,
		cfg:          cfg,
		streamURL:    streamURL,
		clock:        SystemClock{},
		autoStart:    true,
		initialDelay: -1,
		callTimeout:  defaultCallTimeout,
		state:        StateUnmounted,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// result is a backend response travelling back to the machine goroutine.
type result struct {
	epoch uint64
	op    string
	snap  *booth.SnapshotResponse
	ok    bool
	err   error
	apply func(result)
}

// Mount enters the capture screen with the layout handed over by navigation and
// returns the view to render. A nil layout is fatal for the screen: the machine
// navigates home and returns ErrMissingLayout.
func (m *Machine) Mount(ctx context.Context, layout *booth.Layout) (*View, error) {
	if layout == nil {
		slog.Error("capture_mount_failed", "reason", "missing_layout")
		m.nav.Home()
		return nil, ErrMissingLayout
	}
	if err := layout.Validate(); err != nil {
		slog.Error("capture_mount_failed", "layout", layout.Name, "error", err)
		m.nav.Home()
		return nil, errors.Wrap(err, "invalid layout")
	}

	m.mu.Lock()
	if m.cmds != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyMounted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cmds = make(chan func())
	m.results = make(chan result)
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.session = uuid.NewString()
	m.ctx = loopCtx
	m.layout = *layout
	m.view = NewView(*layout)
	m.stream = NewStreamController(m.streamURL, m.view.ActiveStream, m.releaser)
	m.watchdog = NewWatchdog(m.clock, m.cfg.InactivityReturnSeconds)
	m.countdown = NewCountdown(m.clock)
	m.epoch++

	slog.Info("capture_mounted",
		"session", m.session,
		"layout", layout.Name,
		"n_images", layout.Images(),
		"auto_start", m.autoStart)

	m.stack.Clear()
	m.view.ActiveSnapshot.Set(nil)
	m.watchdog.Start()
	m.stream.Restart(loopCtx)
	m.setState(StateIdle)

	if m.autoStart {
		delay := m.cfg.CountdownCaptureSeconds
		if m.initialDelay >= 0 {
			delay = m.initialDelay
		}
		m.startCountdown(delay)
	}

	go m.run(loopCtx, cancel)
	return m.view, nil
}

// View returns the view of the current mount, or nil before the first mount.
func (m *Machine) View() *View {
	return m.view
}

// Done is closed when the current mount has ended.
func (m *Machine) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return m.done
}

// Unmount ends the session without saving: timers are cancelled and every owned
// file is deleted. It is safe to call on an unmounted machine.
func (m *Machine) Unmount() {
	m.mu.Lock()
	cmds, done := m.cmds, m.done
	m.mu.Unlock()
	if cmds == nil {
		return
	}

	select {
	case cmds <- m.unmount:
	case <-done:
	}
	<-done
}

// Wait blocks until fire-and-forget backend work (deletes, abandoned calls) has finished.
func (m *Machine) Wait() {
	m.pending.Wait()
}

// Start begins a fresh capture sequence from Idle.
func (m *Machine) Start() error { return m.post(m.handleStart) }

// Retry throws the current session away and captures the full layout again.
func (m *Machine) Retry() error { return m.post(m.handleRetry) }

// Cancel deletes everything captured so far and leaves. It is always honored.
func (m *Machine) Cancel() error { return m.post(m.handleCancel) }

// RequestPrint opens the print dialog while reviewing.
func (m *Machine) RequestPrint() error { return m.post(m.handleRequestPrint) }

// DismissPrint closes the print dialog and stays in review.
func (m *Machine) DismissPrint() error { return m.post(m.handleDismissPrint) }

// ConfirmPrint prints the composed result and leaves without deleting it.
func (m *Machine) ConfirmPrint(copies int) error {
	return m.post(func() { m.handleConfirmPrint(copies) })
}

// Touch records user activity and resets the inactivity watchdog.
func (m *Machine) Touch() error {
	return m.post(func() { m.watchdog.Reset() })
}

// post runs fn on the machine goroutine and waits for it to finish.
func (m *Machine) post(fn func()) error {
	m.mu.Lock()
	cmds, done := m.cmds, m.done
	m.mu.Unlock()
	if cmds == nil {
		return ErrNotMounted
	}

	ran := make(chan struct{})
	select {
	case cmds <- func() { defer close(ran); fn() }:
	case <-done:
		return ErrNotMounted
	}
	<-ran
	return nil
}

func (m *Machine) run(ctx context.Context, cancel context.CancelFunc) {
	cmds, results, done := m.cmds, m.results, m.done
	defer func() {
		cancel()
		m.mu.Lock()
		m.cmds = nil
		m.mu.Unlock()
		close(done)
	}()

	for m.state != StateUnmounted {
		select {
		case <-ctx.Done():
			m.unmount()
		case fn := <-cmds:
			fn()
		case <-m.watchdog.C():
			m.onWatchdogTick()
		case <-m.countdown.C():
			m.onCountdownTick()
		case res := <-results:
			if res.epoch != m.epoch {
				m.discard(m.session, res)
				continue
			}
			res.apply(res)
		}
	}
}

func (m *Machine) setState(s State) {
	if m.state == s {
		return
	}
	slog.Info("capture_state", "session", m.session, "from", m.state, "to", s)
	m.state = s
	m.view.State.Set(s)
}

func (m *Machine) reject(gesture string) {
	slog.Info("gesture_rejected", "session", m.session, "gesture", gesture, "state", m.state)
}

func (m *Machine) handleStart() {
	if m.state != StateIdle {
		m.reject("start")
		return
	}
	if m.stack.Len() > 0 {
		m.discardStack("restart")
	}
	m.view.Error.Set("")
	m.startCountdown(m.cfg.CountdownCaptureSeconds)
}

func (m *Machine) handleRetry() {
	if m.state != StateReview && m.state != StateIdle {
		m.reject("retry")
		return
	}
	m.discardStack("retry")
	m.stream.Restart(m.ctx)
	m.view.ActiveSnapshot.Set(nil)
	m.view.PrintDialogOpen.Set(false)
	m.view.Error.Set("")
	m.setState(StateIdle)
	m.startCountdown(m.cfg.CountdownCaptureSeconds)
}

func (m *Machine) handleCancel() {
	slog.Info("capture_cancelled", "session", m.session, "state", m.state)
	m.countdown.Stop()
	m.view.CountDownActive.Set(false)
	m.discardStack("cancel")
	m.leave()
}

func (m *Machine) handleRequestPrint() {
	if m.state != StateReview {
		m.reject("request_print")
		return
	}
	m.watchdog.Reset()
	m.view.PrintDialogOpen.Set(true)
}

func (m *Machine) handleDismissPrint() {
	if m.state != StateReview {
		m.reject("dismiss_print")
		return
	}
	m.watchdog.Reset()
	m.view.PrintDialogOpen.Set(false)
}

func (m *Machine) handleConfirmPrint(copies int) {
	if m.state != StateReview {
		m.reject("confirm_print")
		return
	}
	m.watchdog.Reset()
	if copies < 1 {
		m.view.Error.Set(fmt.Sprintf("cannot print %d copies", copies))
		return
	}

	composed := m.stack.Composed()
	req := booth.PrintRequest{
		ImagePath:   composed.ImagePath,
		Copies:      copies,
		Landscape:   true,
		PrinterName: m.cfg.DefaultPrinter,
		CmdArgs:     m.printArgs,
	}

	m.view.PrintDialogOpen.Set(false)
	m.view.Error.Set("")
	m.setState(StatePrinting)
	slog.Info("print_requested", "session", m.session, "image_path", req.ImagePath, "copies", copies, "printer", req.PrinterName)

	m.call("print", func(ctx context.Context) (*booth.SnapshotResponse, bool, error) {
		ok, err := m.backend.PrintSnapshot(ctx, req)
		return nil, ok, err
	}, m.onPrinted)
}

func (m *Machine) startCountdown(seconds int) {
	if m.view.CaptureActive.Get() {
		m.reject("countdown")
		return
	}
	m.watchdog.Reset()
	m.stream.Restart(m.ctx)
	m.view.CountDownRemaining.Set(seconds)
	m.view.CountDownActive.Set(true)

	if seconds <= 0 {
		m.beginCapture()
		return
	}
	m.countdown.Start(seconds)
	m.setState(StateCountdown)
}

func (m *Machine) onCountdownTick() {
	remaining, done := m.countdown.Tick()
	m.view.CountDownRemaining.Set(remaining)
	if done {
		m.beginCapture()
	}
}

func (m *Machine) beginCapture() {
	m.countdown.Stop()
	m.view.CountDownActive.Set(false)

	// The camera cannot serve preview and stills at once.
	if err := m.stream.Cancel(m.ctx); err != nil {
		slog.Warn("capture_stream_still_bound", "session", m.session, "error", err)
	}

	m.view.CaptureActive.Set(true)
	m.setState(StateCapturing)
	slog.Info("capture_started", "session", m.session, "shot", m.stack.Captures()+1, "of", m.layout.Images())

	m.call("capture", func(ctx context.Context) (*booth.SnapshotResponse, bool, error) {
		snap, err := m.backend.CaptureSnapshot(ctx)
		return snap, snap != nil, err
	}, m.onCaptured)
}

func (m *Machine) onCaptured(res result) {
	if res.err == nil && res.snap == nil {
		res.err = errors.New("backend returned no snapshot")
	}
	if res.err != nil {
		m.view.CaptureActive.Set(false)
		m.fail("capture", res.err)
		return
	}

	m.stack.Push(res.snap)
	remaining := m.layout.Images() - m.stack.Captures()
	slog.Info("capture_complete", "session", m.session, "image_path", res.snap.ImagePath, "remaining", remaining)

	if remaining > 0 {
		m.view.CaptureActive.Set(false)
		m.startCountdown(m.cfg.CountdownCaptureSeconds)
		return
	}
	m.compose()
}

func (m *Machine) compose() {
	m.setState(StateComposing)
	if err := m.stream.Cancel(m.ctx); err != nil {
		slog.Warn("compose_stream_still_bound", "session", m.session, "error", err)
	}

	paths := m.stack.ImagePaths()
	slog.Info("compose_started", "session", m.session, "paths", paths)

	m.call("render", func(ctx context.Context) (*booth.SnapshotResponse, bool, error) {
		snap, err := m.backend.RenderLayout(ctx, paths)
		return snap, snap != nil, err
	}, m.onComposed)
}

func (m *Machine) onComposed(res result) {
	m.view.CaptureActive.Set(false)
	if res.err == nil && res.snap == nil {
		res.err = errors.New("backend returned no composition")
	}
	if res.err != nil {
		// Captures stay on the stack; Start or Retry deletes them.
		slog.Error("compose_failed", "session", m.session, "error", res.err)
		m.view.Error.Set(fmt.Sprintf("render failed: %v", res.err))
		m.stream.Restart(m.ctx)
		m.setState(StateIdle)
		return
	}

	m.stack.PushComposed(res.snap)
	m.view.ActiveSnapshot.Set(res.snap)
	m.setState(StateReview)
	slog.Info("compose_complete", "session", m.session, "image_path", res.snap.ImagePath)
}

func (m *Machine) onPrinted(res result) {
	if res.err == nil && !res.ok {
		res.err = errors.New("backend refused the print job")
	}
	if res.err != nil {
		slog.Error("print_failed", "session", m.session, "error", res.err)
		m.setState(StateReview)
		m.view.Error.Set(fmt.Sprintf("print failed: %v", res.err))
		return
	}

	slog.Info("print_queued", "session", m.session)
	// The backend keeps saved files.
	m.stack.Clear()
	m.leave()
}

func (m *Machine) onWatchdogTick() {
	if !m.watchdog.Tick() {
		return
	}
	if m.view.ActiveSnapshot.Get() != nil {
		return
	}

	slog.Info("inactivity_timeout", "session", m.session, "elapsed", m.watchdog.Elapsed(), "state", m.state)
	m.countdown.Stop()
	m.view.CountDownActive.Set(false)
	m.discardStack("inactivity")
	m.leave()
}

// fail aborts the sequence and returns to Idle with the error surfaced.
func (m *Machine) fail(op string, err error) {
	slog.Error("capture_sequence_aborted", "session", m.session, "op", op, "captured", m.stack.Captures(), "error", err)
	m.countdown.Stop()
	m.view.CountDownActive.Set(false)
	m.view.CaptureActive.Set(false)
	m.discardStack(op + "_failed")
	m.view.Error.Set(fmt.Sprintf("%s failed: %v", op, err))
	m.stream.Restart(m.ctx)
	m.setState(StateIdle)
}

func (m *Machine) leave() {
	m.setState(StateLeaving)
	m.watchdog.Stop()
	m.countdown.Stop()
	if err := m.stream.Cancel(m.ctx); err != nil {
		slog.Warn("leave_stream_still_bound", "session", m.session, "error", err)
	}
	m.view.reset()
	m.epoch++
	m.stack.Clear()

	slog.Info("capture_leaving", "session", m.session)
	m.nav.Home()
	m.setState(StateUnmounted)
}

func (m *Machine) unmount() {
	if m.state == StateUnmounted {
		return
	}
	slog.Info("capture_unmounted", "session", m.session, "state", m.state)
	m.watchdog.Stop()
	m.countdown.Stop()
	m.discardStack("unmount")
	if err := m.stream.Cancel(m.ctx); err != nil {
		slog.Warn("unmount_stream_still_bound", "session", m.session, "error", err)
	}
	m.view.reset()
	m.epoch++
	m.setState(StateUnmounted)
}

// discardStack deletes every owned file in the background and clears the stack.
func (m *Machine) discardStack(reason string) {
	paths := m.stack.AllOwnedPaths()
	m.stack.Clear()
	m.deleteAsync(m.session, paths, reason)
}

// discard drops a response that arrived for an abandoned session. Files it created are
// deleted so nothing is orphaned on the backend.
func (m *Machine) discard(session string, res result) {
	slog.Info("stale_result_discarded", "session", session, "op", res.op, "error", res.err)
	if res.snap != nil {
		m.deleteAsync(session, ownedPaths(res.snap), "abandoned_"+res.op)
	}
}

func (m *Machine) deleteAsync(session string, paths []string, reason string) {
	if len(paths) == 0 {
		return
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
		defer cancel()

		ok, err := m.backend.DeleteSnapshots(ctx, paths)
		if err != nil {
			slog.Warn("snapshot_delete_failed", "session", session, "reason", reason, "paths", paths, "error", err)
			return
		}
		if !ok {
			slog.Warn("snapshot_delete_refused", "session", session, "reason", reason, "paths", paths)
			return
		}
		slog.Info("snapshots_deleted", "session", session, "reason", reason, "count", len(paths))
	}()
}

// call runs a backend operation off the machine goroutine and routes its result back.
// Calls are not cancelled on leave; late results are discarded instead.
func (m *Machine) call(op string, fn func(ctx context.Context) (*booth.SnapshotResponse, bool, error), apply func(result)) {
	epoch, session := m.epoch, m.session
	results, done := m.results, m.done
	parent := context.WithoutCancel(m.ctx)

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(parent, m.callTimeout)
		defer cancel()

		snap, ok, err := fn(ctx)
		res := result{epoch: epoch, op: op, snap: snap, ok: ok, err: err, apply: apply}
		select {
		case results <- res:
		case <-done:
			m.discard(session, res)
		}
	}()
}
