package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/stretchr/testify/require"
)

const testStreamURL = "http://booth.local/api/stream"

// manualClock hands out tickers that only fire when the test advances time.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *manualTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance delivers one second to every ticker that is running right now.
func (c *manualClock) Advance() {
	c.mu.Lock()
	var active []*manualTicker
	for _, t := range c.tickers {
		if !t.isStopped() {
			active = append(active, t)
		}
	}
	c.mu.Unlock()

	for _, t := range active {
		select {
		case t.ch <- time.Now():
		case <-t.stopped:
		}
	}
}

// Running counts tickers that were never stopped.
func (c *manualClock) Running() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

// recorder keeps the global order of stream changes and backend calls.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// lastStream returns the most recent stream mutation.
func (r *recorder) lastStream() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if strings.HasPrefix(r.events[i], "stream:") {
			return r.events[i]
		}
	}
	return ""
}

type captureStep struct {
	snap *booth.SnapshotResponse
	err  error
}

type fakeBackend struct {
	rec *recorder

	mu          sync.Mutex
	steps       []captureStep
	captureGate chan struct{}
	renderSnap  *booth.SnapshotResponse
	renderErr   error
	printOK     bool
	printErr    error

	captureCalls int
	streamAtCall []string
	renderArgs   [][]string
	deleted      [][]string
	prints       []booth.PrintRequest
}

func newFakeBackend(rec *recorder, steps ...captureStep) *fakeBackend {
	return &fakeBackend{rec: rec, steps: steps, printOK: true}
}

func (f *fakeBackend) CaptureSnapshot(ctx context.Context) (*booth.SnapshotResponse, error) {
	f.rec.add("capture")

	f.mu.Lock()
	f.streamAtCall = append(f.streamAtCall, f.rec.lastStream())
	idx := f.captureCalls
	f.captureCalls++
	gate := f.captureGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if idx >= len(f.steps) {
		return nil, fmt.Errorf("no capture scripted for call %d", idx+1)
	}
	return f.steps[idx].snap, f.steps[idx].err
}

func (f *fakeBackend) DeleteSnapshots(ctx context.Context, paths []string) (bool, error) {
	f.rec.add("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, append([]string(nil), paths...))
	return true, nil
}

func (f *fakeBackend) PrintSnapshot(ctx context.Context, req booth.PrintRequest) (bool, error) {
	f.rec.add("print")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prints = append(f.prints, req)
	return f.printOK, f.printErr
}

func (f *fakeBackend) RenderLayout(ctx context.Context, paths []string) (*booth.SnapshotResponse, error) {
	f.rec.add("render")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderArgs = append(f.renderArgs, append([]string(nil), paths...))
	return f.renderSnap, f.renderErr
}

func (f *fakeBackend) captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captureCalls
}

func (f *fakeBackend) deletedPaths() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.deleted...)
}

func (f *fakeBackend) printed() []booth.PrintRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]booth.PrintRequest(nil), f.prints...)
}

func (f *fakeBackend) renders() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.renderArgs...)
}

type fakeNav struct {
	mu    sync.Mutex
	homes int
}

func (n *fakeNav) Home() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.homes++
}

func (n *fakeNav) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.homes
}

func snap(path string, siblings ...string) *booth.SnapshotResponse {
	return &booth.SnapshotResponse{
		ImagePath: path,
		ImageB64:  "data:image/jpeg;base64,AAAA",
		AllPaths:  append([]string{path}, siblings...),
	}
}

func ok(path string, siblings ...string) captureStep {
	return captureStep{snap: snap(path, siblings...)}
}

// harness wires a machine to fakes and records the view's stream changes.
type harness struct {
	t       *testing.T
	clock   *manualClock
	rec     *recorder
	backend *fakeBackend
	nav     *fakeNav
	machine *Machine
	view    *View
}

func testConfig(countdown, inactivity int) booth.BoothConfig {
	return booth.BoothConfig{
		CountdownCaptureSeconds: countdown,
		InactivityReturnSeconds: inactivity,
		BoothTitle:              "Test Booth",
		DefaultPrinter:          "selphy",
	}
}

func newHarness(t *testing.T, cfg booth.BoothConfig, steps []captureStep, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clock: &manualClock{},
		rec:   &recorder{},
		nav:   &fakeNav{},
	}
	h.backend = newFakeBackend(h.rec, steps...)
	opts = append([]Option{WithClock(h.clock)}, opts...)
	h.machine = New(h.backend, h.nav, cfg, testStreamURL, opts...)
	return h
}

func (h *harness) mount(layout booth.Layout) *View {
	h.t.Helper()
	view, err := h.machine.Mount(context.Background(), &layout)
	require.NoError(h.t, err)
	h.view = view

	view.ActiveStream.Subscribe(func(url string) {
		if url == "" {
			h.rec.add("stream:off")
		} else {
			h.rec.add("stream:on")
		}
	})
	h.t.Cleanup(func() {
		h.machine.Unmount()
		h.machine.Wait()
	})
	return view
}

// tick advances the clock n seconds and waits until the last tick was handled.
func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance()
		h.settle()
	}
}

func (h *harness) settle() {
	_ = h.machine.post(func() {})
}

func (h *harness) waitState(s State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.view.State.Get() == s
	}, 2*time.Second, time.Millisecond, "waiting for state %s, at %s", s, h.view.State.Get())
}

// runShot counts a full countdown down and waits for the capture to be issued.
func (h *harness) runShot(countdown int) {
	h.t.Helper()
	h.waitState(StateCountdown)
	before := h.backend.captures()
	h.tick(countdown)
	require.Eventually(h.t, func() bool {
		return h.backend.captures() == before+1
	}, 2*time.Second, time.Millisecond)
}
