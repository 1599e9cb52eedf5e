package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_SubscribeAndUnsubscribe(t *testing.T) {
	s := NewSignal(1)
	var got []int
	unsub := s.Subscribe(func(v int) { got = append(got, v) })
	s.Subscribe(func(v int) { got = append(got, v*10) })

	s.Set(2)
	unsub()
	s.Set(3)

	assert.Equal(t, []int{2, 20, 30}, got)
	assert.Equal(t, 3, s.Get())
}

func TestView_FramePriority(t *testing.T) {
	v := NewView(booth.Layout{Name: "Grid", Grid: "2x2"})

	f := v.Frame()
	assert.Equal(t, PaneStream, f.Pane)
	assert.Equal(t, []Button{ButtonStart, ButtonCancel}, f.Buttons)
	assert.Equal(t, 4, f.Shots)

	v.Error.Set("render failed: template missing")
	f = v.Frame()
	assert.Equal(t, PaneStream, f.Pane)
	assert.Equal(t, []Button{ButtonStart, ButtonRetry, ButtonCancel}, f.Buttons)
	v.Error.Set("")

	v.CountDownActive.Set(true)
	v.CountDownRemaining.Set(7)
	f = v.Frame()
	assert.Equal(t, PaneCountdown, f.Pane)
	assert.Equal(t, 7, f.Remaining)
	assert.True(t, f.Has(ButtonCancel))
	assert.False(t, f.Has(ButtonStart))

	v.CountDownActive.Set(false)
	v.CaptureActive.Set(true)
	f = v.Frame()
	assert.Equal(t, PaneCapturing, f.Pane)
	assert.Empty(t, f.Buttons)

	v.ActiveSnapshot.Set(snap("combined.jpg"))
	f = v.Frame()
	assert.Equal(t, PaneSnapshot, f.Pane)
	assert.Equal(t, "snapshot", f.Pane.String())
	assert.True(t, f.Has(ButtonPrint))

	v.reset()
	assert.Equal(t, PaneStream, v.Frame().Pane)
}

func TestStreamController(t *testing.T) {
	sig := NewSignal("")
	releases := 0
	sc := NewStreamController(testStreamURL, sig, ReleaserFunc(func(context.Context) error {
		releases++
		return nil
	}))

	sc.Restart(context.Background())
	assert.True(t, sc.Active())
	assert.Equal(t, testStreamURL, sig.Get())

	require.NoError(t, sc.Cancel(context.Background()))
	require.NoError(t, sc.Cancel(context.Background()))
	assert.False(t, sc.Active())
	assert.Equal(t, 2, releases)
}

func TestStreamController_ReleaseError(t *testing.T) {
	sig := NewSignal(testStreamURL)
	sc := NewStreamController(testStreamURL, sig, ReleaserFunc(func(context.Context) error {
		return errors.New("viewer still attached")
	}))

	err := sc.Cancel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream release")
	assert.Equal(t, "", sig.Get(), "signal is cleared even when release fails")
}
