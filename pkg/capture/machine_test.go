package capture

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	single = booth.Layout{LayoutID: "single", Name: "Single", NImages: 1, Grid: "1"}
	triple = booth.Layout{LayoutID: "strip", Name: "Strip", NImages: 3}
)

func TestMount_MissingLayoutNavigatesHome(t *testing.T) {
	h := newHarness(t, testConfig(3, 30), nil)

	view, err := h.machine.Mount(context.Background(), nil)
	require.ErrorIs(t, err, ErrMissingLayout)
	assert.Nil(t, view)
	assert.Equal(t, 1, h.nav.count())
	assert.ErrorIs(t, h.machine.Start(), ErrNotMounted)
}

func TestMount_InvalidLayoutNavigatesHome(t *testing.T) {
	h := newHarness(t, testConfig(3, 30), nil)

	_, err := h.machine.Mount(context.Background(), &booth.Layout{Name: "Broken", Grid: "abc"})
	require.Error(t, err)
	assert.Equal(t, 1, h.nav.count())
}

func TestMount_Twice(t *testing.T) {
	h := newHarness(t, testConfig(3, 30), nil)
	h.mount(single)

	_, err := h.machine.Mount(context.Background(), &single)
	assert.ErrorIs(t, err, ErrAlreadyMounted)
}

func TestMount_AutoStartsCountdown(t *testing.T) {
	h := newHarness(t, testConfig(3, 30), nil)
	view := h.mount(single)

	assert.Equal(t, StateCountdown, view.State.Get())
	assert.True(t, view.CountDownActive.Get())
	assert.Equal(t, 3, view.CountDownRemaining.Get())
	assert.Equal(t, testStreamURL, view.ActiveStream.Get())

	h.tick(1)
	assert.Equal(t, 2, view.CountDownRemaining.Get())
}

func TestMount_WithoutAutoStartWaitsForStart(t *testing.T) {
	h := newHarness(t, testConfig(2, 30), []captureStep{ok("a.jpg")}, WithAutoStart(false))
	h.backend.renderSnap = snap("a.jpg")
	view := h.mount(single)

	assert.Equal(t, StateIdle, view.State.Get())
	assert.False(t, view.CountDownActive.Get())
	frame := view.Frame()
	assert.Equal(t, PaneStream, frame.Pane)
	assert.True(t, frame.Has(ButtonStart))

	require.NoError(t, h.machine.Start())
	assert.Equal(t, StateCountdown, view.State.Get())
	h.runShot(2)
	h.waitState(StateReview)
}

func TestSingleShot_CaptureReviewPrint(t *testing.T) {
	h := newHarness(t, testConfig(3, 30), []captureStep{ok("a.jpg", "a_raw.jpg")},
		WithPrintArgs("-o", "media=postcard"))
	h.backend.renderSnap = snap("a.jpg", "a_raw.jpg")
	view := h.mount(single)

	h.runShot(3)
	h.waitState(StateReview)

	frame := view.Frame()
	assert.Equal(t, PaneSnapshot, frame.Pane)
	assert.Equal(t, []Button{ButtonRetry, ButtonPrint, ButtonCancel}, frame.Buttons)
	assert.Equal(t, [][]string{{"a.jpg"}}, h.backend.renders())
	assert.Equal(t, "", view.ActiveStream.Get())

	require.NoError(t, h.machine.RequestPrint())
	assert.True(t, view.PrintDialogOpen.Get())

	require.NoError(t, h.machine.ConfirmPrint(2))
	<-h.machine.Done()
	h.machine.Wait()

	assert.Equal(t, []booth.PrintRequest{{
		ImagePath:   "a.jpg",
		Copies:      2,
		Landscape:   true,
		PrinterName: "selphy",
		CmdArgs:     []string{"-o", "media=postcard"},
	}}, h.backend.printed())
	assert.Empty(t, h.backend.deletedPaths(), "printed sessions keep their files")
	assert.Equal(t, 1, h.nav.count())
	assert.Equal(t, StateUnmounted, view.State.Get())
	assert.Nil(t, view.ActiveSnapshot.Get())
	assert.Equal(t, 0, h.clock.Running())
}

func TestThreeShot_CapturesThenComposesOnce(t *testing.T) {
	steps := []captureStep{ok("1.jpg", "1_raw.jpg"), ok("2.jpg", "2_raw.jpg"), ok("3.jpg", "3_raw.jpg")}
	h := newHarness(t, testConfig(5, 30), steps)
	h.backend.renderSnap = snap("combined_1.jpg")
	view := h.mount(triple)

	for shot := 1; shot <= 3; shot++ {
		h.runShot(5)
		if shot < 3 {
			h.waitState(StateCountdown)
			assert.Equal(t, 5, view.CountDownRemaining.Get(), "each shot restarts the full countdown")
		}
	}
	h.waitState(StateReview)

	assert.Equal(t, 3, h.backend.captures())
	assert.Equal(t, [][]string{{"1.jpg", "2.jpg", "3.jpg"}}, h.backend.renders())
	assert.Equal(t, "combined_1.jpg", view.ActiveSnapshot.Get().ImagePath)

	events := h.rec.all()
	var calls []string
	for _, e := range events {
		if e == "capture" || e == "render" {
			calls = append(calls, e)
		}
	}
	assert.Equal(t, []string{"capture", "capture", "capture", "render"}, calls)
}

func TestRetryFromReview_DeletesEverythingOnce(t *testing.T) {
	steps := []captureStep{
		ok("1.jpg"), ok("2.jpg"), ok("3.jpg"),
		ok("4.jpg"), ok("5.jpg"), ok("6.jpg"),
	}
	h := newHarness(t, testConfig(2, 30), steps)
	h.backend.renderSnap = snap("combined.jpg")
	view := h.mount(triple)

	for i := 0; i < 3; i++ {
		h.runShot(2)
	}
	h.waitState(StateReview)

	require.NoError(t, h.machine.Retry())
	h.machine.Wait()

	assert.Equal(t, [][]string{{"1.jpg", "2.jpg", "3.jpg", "combined.jpg"}}, h.backend.deletedPaths())
	assert.Equal(t, StateCountdown, view.State.Get())
	assert.Equal(t, 2, view.CountDownRemaining.Get())
	assert.Nil(t, view.ActiveSnapshot.Get())
	assert.Equal(t, testStreamURL, view.ActiveStream.Get())

	for i := 0; i < 3; i++ {
		h.runShot(2)
	}
	h.waitState(StateReview)
	renders := h.backend.renders()
	require.Len(t, renders, 2)
	assert.Equal(t, []string{"4.jpg", "5.jpg", "6.jpg"}, renders[1])
}

func TestCancelFromReview_DeletesAndLeaves(t *testing.T) {
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg", "a_raw.jpg", "a.cr3")})
	h.backend.renderSnap = snap("a.jpg", "a_raw.jpg")
	view := h.mount(single)

	h.runShot(1)
	h.waitState(StateReview)

	require.NoError(t, h.machine.Cancel())
	<-h.machine.Done()
	h.machine.Wait()

	assert.Equal(t, [][]string{{"a.jpg", "a_raw.jpg", "a.cr3"}}, h.backend.deletedPaths())
	assert.Equal(t, 1, h.nav.count())
	assert.Equal(t, StateUnmounted, view.State.Get())
	assert.Equal(t, 0, h.clock.Running())
}

func TestCancelDuringCountdown_NothingToDelete(t *testing.T) {
	h := newHarness(t, testConfig(5, 30), nil)
	view := h.mount(single)

	h.tick(2)
	require.NoError(t, h.machine.Cancel())
	<-h.machine.Done()
	h.machine.Wait()

	assert.Empty(t, h.backend.deletedPaths())
	assert.Equal(t, 0, h.backend.captures())
	assert.False(t, view.CountDownActive.Get())
	assert.Equal(t, 1, h.nav.count())
}

func TestInactivityDuringCountdown_LeavesWithoutCapturing(t *testing.T) {
	h := newHarness(t, testConfig(5, 2), nil)
	view := h.mount(single)

	h.tick(1)
	assert.Equal(t, StateCountdown, view.State.Get())
	h.tick(1)

	<-h.machine.Done()
	h.machine.Wait()
	assert.Equal(t, 0, h.backend.captures())
	assert.Equal(t, 1, h.nav.count())
	assert.Equal(t, StateUnmounted, view.State.Get())
	assert.Equal(t, 0, h.clock.Running())
}

func TestInactivityDuringReview_IsSuppressed(t *testing.T) {
	h := newHarness(t, testConfig(1, 3), []captureStep{ok("a.jpg")})
	h.backend.renderSnap = snap("a.jpg")
	view := h.mount(single)

	h.runShot(1)
	h.waitState(StateReview)

	h.tick(10)
	assert.Equal(t, StateReview, view.State.Get())
	assert.Equal(t, 0, h.nav.count())
	assert.Empty(t, h.backend.deletedPaths())
}

func TestInactivityDuringCapture_DeletesLateResult(t *testing.T) {
	h := newHarness(t, testConfig(1, 4), []captureStep{ok("late.jpg", "late_raw.jpg")})
	h.backend.captureGate = make(chan struct{})
	view := h.mount(triple)

	h.runShot(1)
	h.waitState(StateCapturing)
	h.tick(3)

	<-h.machine.Done()
	assert.Equal(t, 1, h.nav.count())

	close(h.backend.captureGate)
	h.machine.Wait()

	assert.Equal(t, [][]string{{"late.jpg", "late_raw.jpg"}}, h.backend.deletedPaths())
	assert.False(t, view.CaptureActive.Get())
	assert.Nil(t, view.ActiveSnapshot.Get())
}

func TestPrintDialogDismiss_StaysInReview(t *testing.T) {
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg")})
	h.backend.renderSnap = snap("a.jpg")
	view := h.mount(single)

	h.runShot(1)
	h.waitState(StateReview)

	require.NoError(t, h.machine.RequestPrint())
	require.NoError(t, h.machine.DismissPrint())

	assert.False(t, view.PrintDialogOpen.Get())
	assert.Equal(t, StateReview, view.State.Get())
	assert.NotNil(t, view.ActiveSnapshot.Get())
	assert.Empty(t, h.backend.printed())
	assert.Empty(t, h.backend.deletedPaths())
	assert.Equal(t, 0, h.nav.count())
}

func TestPrintFailure_ReturnsToReview(t *testing.T) {
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg")})
	h.backend.renderSnap = snap("a.jpg")
	h.backend.printOK = false
	view := h.mount(single)

	h.runShot(1)
	h.waitState(StateReview)

	require.NoError(t, h.machine.ConfirmPrint(1))
	require.Eventually(t, func() bool { return view.Error.Get() != "" }, 2*time.Second, time.Millisecond)

	assert.Equal(t, StateReview, view.State.Get())
	assert.NotNil(t, view.ActiveSnapshot.Get())
	assert.Equal(t, 0, h.nav.count())
}

func TestConfirmPrint_RejectsZeroCopies(t *testing.T) {
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg")})
	h.backend.renderSnap = snap("a.jpg")
	view := h.mount(single)

	h.runShot(1)
	h.waitState(StateReview)

	require.NoError(t, h.machine.ConfirmPrint(0))
	assert.NotEmpty(t, view.Error.Get())
	assert.Equal(t, StateReview, view.State.Get())
	assert.Empty(t, h.backend.printed())
}

func TestCaptureFailureOnSecondShot_ReturnsToIdle(t *testing.T) {
	steps := []captureStep{ok("1.jpg", "1_raw.jpg"), {err: fmt.Errorf("camera busy")}}
	h := newHarness(t, testConfig(1, 30), steps)
	view := h.mount(triple)

	h.runShot(1)
	h.waitState(StateCountdown)
	h.runShot(1)
	h.waitState(StateIdle)
	h.machine.Wait()

	assert.Equal(t, [][]string{{"1.jpg", "1_raw.jpg"}}, h.backend.deletedPaths())
	assert.Contains(t, view.Error.Get(), "camera busy")
	assert.False(t, view.CaptureActive.Get())
	assert.False(t, view.CountDownActive.Get())
	assert.Equal(t, testStreamURL, view.ActiveStream.Get())
	assert.Empty(t, h.backend.renders())
	assert.Equal(t, 0, h.nav.count())
}

func TestComposeFailure_KeepsCapturesUntilRestart(t *testing.T) {
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg"), ok("b.jpg")})
	h.backend.renderErr = fmt.Errorf("template missing")
	view := h.mount(single)

	h.runShot(1)
	h.waitState(StateIdle)
	h.machine.Wait()

	assert.Contains(t, view.Error.Get(), "template missing")
	assert.Empty(t, h.backend.deletedPaths())
	assert.Equal(t, testStreamURL, view.ActiveStream.Get())

	require.NoError(t, h.machine.Start())
	h.machine.Wait()
	assert.Equal(t, [][]string{{"a.jpg"}}, h.backend.deletedPaths())
	assert.Equal(t, "", view.Error.Get())
	assert.Equal(t, StateCountdown, view.State.Get())
}

func TestComposeFailure_OffersRetry(t *testing.T) {
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg"), ok("b.jpg")})
	h.backend.renderErr = fmt.Errorf("template missing")
	view := h.mount(single)

	h.runShot(1)
	h.waitState(StateIdle)
	h.machine.Wait()
	assert.True(t, view.Frame().Has(ButtonRetry))

	require.NoError(t, h.machine.Retry())
	h.machine.Wait()
	assert.Equal(t, [][]string{{"a.jpg"}}, h.backend.deletedPaths())
	assert.Equal(t, StateCountdown, view.State.Get())
	assert.False(t, view.Frame().Has(ButtonRetry))
}

func TestGesturesRejectedOutsideTheirStates(t *testing.T) {
	h := newHarness(t, testConfig(5, 30), nil)
	view := h.mount(single)

	require.NoError(t, h.machine.Start())
	require.NoError(t, h.machine.RequestPrint())
	require.NoError(t, h.machine.ConfirmPrint(1))
	require.NoError(t, h.machine.Retry())

	assert.Equal(t, StateCountdown, view.State.Get())
	assert.False(t, view.PrintDialogOpen.Get())
	assert.Empty(t, h.backend.printed())
}

func TestTouch_ResetsInactivity(t *testing.T) {
	h := newHarness(t, testConfig(0, 3), nil, WithAutoStart(false))
	view := h.mount(single)

	h.tick(2)
	require.NoError(t, h.machine.Touch())
	h.tick(2)
	assert.Equal(t, StateIdle, view.State.Get())

	h.tick(1)
	<-h.machine.Done()
	assert.Equal(t, 1, h.nav.count())
}

func TestInitialDelay_AppliesToFirstShotOnly(t *testing.T) {
	h := newHarness(t, testConfig(4, 30), []captureStep{ok("1.jpg"), ok("2.jpg")}, WithInitialDelay(1))
	h.backend.renderSnap = snap("combined.jpg")
	view := h.mount(booth.Layout{Name: "Pair", NImages: 2})

	assert.Equal(t, 1, view.CountDownRemaining.Get())
	h.runShot(1)
	h.waitState(StateCountdown)
	assert.Equal(t, 4, view.CountDownRemaining.Get())
	h.runShot(4)
	h.waitState(StateReview)
}

func TestZeroCountdown_CapturesImmediately(t *testing.T) {
	h := newHarness(t, testConfig(0, 30), []captureStep{ok("a.jpg")})
	h.backend.renderSnap = snap("a.jpg")
	h.mount(single)

	h.waitState(StateReview)
	assert.Equal(t, 1, h.backend.captures())
}

func TestUnmount_IsIdempotentAndCleansUp(t *testing.T) {
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg", "a_raw.jpg"), ok("b.jpg")})
	view := h.mount(triple)

	h.runShot(1)
	h.waitState(StateCountdown)

	h.machine.Unmount()
	h.machine.Unmount()
	h.machine.Wait()

	assert.Equal(t, 0, h.clock.Running())
	assert.Equal(t, [][]string{{"a.jpg", "a_raw.jpg"}}, h.backend.deletedPaths())
	assert.Equal(t, 0, h.nav.count(), "unmount does not navigate")
	assert.Equal(t, StateUnmounted, view.State.Get())
	assert.Equal(t, "", view.ActiveStream.Get())
	assert.ErrorIs(t, h.machine.Cancel(), ErrNotMounted)
}

func TestContextCancelUnmounts(t *testing.T) {
	h := newHarness(t, testConfig(5, 30), nil)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := h.machine.Mount(ctx, &single)
	require.NoError(t, err)

	cancel()
	<-h.machine.Done()
	assert.Equal(t, 0, h.clock.Running())
}

func TestRemount_StartsFreshSession(t *testing.T) {
	h := newHarness(t, testConfig(5, 30), nil)
	first := h.mount(single)
	require.NoError(t, h.machine.Cancel())
	<-h.machine.Done()

	second, err := h.machine.Mount(context.Background(), &single)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, StateCountdown, second.State.Get())
	h.machine.Unmount()
}

func TestStreamReleasedBeforeCapture(t *testing.T) {
	rec := &recorder{}
	releaser := ReleaserFunc(func(ctx context.Context) error {
		rec.add("release")
		return nil
	})
	h := newHarness(t, testConfig(1, 30), []captureStep{ok("a.jpg")}, WithReleaser(releaser))
	h.rec = rec
	h.backend.rec = rec
	h.backend.renderSnap = snap("a.jpg")
	h.mount(single)

	h.runShot(1)
	h.waitState(StateReview)

	events := rec.all()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, []string{"stream:off", "release", "capture"}, events[:3])
}

// Properties checked across a full three-shot run with a retry.
func TestInvariantsHoldThroughoutSession(t *testing.T) {
	steps := []captureStep{
		ok("1.jpg"), ok("2.jpg"), ok("3.jpg"),
		ok("4.jpg"), ok("5.jpg"), ok("6.jpg"),
	}
	h := newHarness(t, testConfig(2, 30), steps)
	h.backend.renderSnap = snap("combined.jpg")
	view := h.mount(triple)

	var mu sync.Mutex
	var violations []string
	violate := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	check := func() {
		if view.CountDownActive.Get() && view.CaptureActive.Get() {
			violate("countdown and capture active together")
		}
	}
	view.CountDownActive.Subscribe(func(bool) { check() })
	view.CaptureActive.Subscribe(func(active bool) {
		check()
		if active && view.ActiveStream.Get() != "" {
			violate("capture started with stream bound")
		}
	})

	for round := 0; round < 2; round++ {
		for i := 0; i < 3; i++ {
			h.runShot(2)
		}
		h.waitState(StateReview)
		if round == 0 {
			require.NoError(t, h.machine.Retry())
		}
	}

	mu.Lock()
	assert.Empty(t, violations)
	mu.Unlock()

	h.backend.mu.Lock()
	for i, s := range h.backend.streamAtCall {
		assert.Equal(t, "stream:off", s, "capture %d", i+1)
	}
	h.backend.mu.Unlock()
	assert.Equal(t, 6, h.backend.captures())
	assert.Len(t, h.backend.renders(), 2)
}
