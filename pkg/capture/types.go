// Package capture implements the kiosk capture-screen controller: a state machine that
// coordinates the preview stream, the countdown, remote captures, layout composition,
// the inactivity watchdog and the retry, cancel and print transitions of one session.
package capture

import (
	"context"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/errors"
)

// State is a capture-screen state name.
type State string

// State names
const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StateCapturing State = "capturing"
	StateComposing State = "composing"
	StateReview    State = "review"
	StatePrinting  State = "printing"
	StateLeaving   State = "leaving"
	StateUnmounted State = "unmounted"
)

var (
	// ErrMissingLayout is returned by Mount when no layout was handed over by navigation.
	ErrMissingLayout = errors.New("capture: no layout in navigation state")

	// ErrNotMounted is returned when a gesture reaches a machine that is not running.
	ErrNotMounted = errors.New("capture: machine not mounted")

	// ErrAlreadyMounted is returned by Mount on a running machine.
	ErrAlreadyMounted = errors.New("capture: machine already mounted")
)

// Backend is the subset of the camera backend the capture screen drives.
type Backend interface {
	CaptureSnapshot(ctx context.Context) (*booth.SnapshotResponse, error)
	DeleteSnapshots(ctx context.Context, paths []string) (bool, error)
	PrintSnapshot(ctx context.Context, req booth.PrintRequest) (bool, error)
	RenderLayout(ctx context.Context, paths []string) (*booth.SnapshotResponse, error)
}

// Navigator moves the kiosk back to the welcome route.
type Navigator interface {
	Home()
}

// NavigatorFunc adapts a plain function to Navigator.
type NavigatorFunc func()

// Home calls f.
func (f NavigatorFunc) Home() { f() }

// Releaser blocks until the view has dropped its preview connection.
type Releaser interface {
	Release(ctx context.Context) error
}

// ReleaserFunc adapts a plain function to Releaser.
type ReleaserFunc func(ctx context.Context) error

// Release calls f.
func (f ReleaserFunc) Release(ctx context.Context) error { return f(ctx) }
