package capture

import "github.com/Zahlii/photobooth/pkg/booth"

// View is the set of reactive values the capture screen renders.
type View struct {
	Layout booth.Layout

	CountDownActive    *Signal[bool]
	CaptureActive      *Signal[bool]
	CountDownRemaining *Signal[int]
	ActiveStream       *Signal[string]
	ActiveSnapshot     *Signal[*booth.SnapshotResponse]

	PrintDialogOpen *Signal[bool]
	Error           *Signal[string]
	State           *Signal[State]
}

// NewView creates a view with every signal at its idle value.
func NewView(layout booth.Layout) *View {
	return &View{
		Layout:             layout,
		CountDownActive:    NewSignal(false),
		CaptureActive:      NewSignal(false),
		CountDownRemaining: NewSignal(0),
		ActiveStream:       NewSignal(""),
		ActiveSnapshot:     NewSignal[*booth.SnapshotResponse](nil),
		PrintDialogOpen:    NewSignal(false),
		Error:              NewSignal(""),
		State:              NewSignal(StateIdle),
	}
}

// reset puts every signal back to its idle value. The stream is left to the stream controller.
func (v *View) reset() {
	v.CountDownActive.Set(false)
	v.CaptureActive.Set(false)
	v.CountDownRemaining.Set(0)
	v.ActiveSnapshot.Set(nil)
	v.PrintDialogOpen.Set(false)
	v.Error.Set("")
}

// Pane is what occupies the main area of the capture screen.
type Pane int

const (
	PaneStream Pane = iota
	PaneCountdown
	PaneCapturing
	PaneSnapshot
)

func (p Pane) String() string {
	switch p {
	case PaneSnapshot:
		return "snapshot"
	case PaneCapturing:
		return "capturing"
	case PaneCountdown:
		return "countdown"
	default:
		return "stream"
	}
}

// Button is a user action offered by the screen.
type Button string

const (
	ButtonStart  Button = "start"
	ButtonCancel Button = "cancel"
	ButtonRetry  Button = "retry"
	ButtonPrint  Button = "print"
)

// Frame is a consistent read of the view for one render pass.
type Frame struct {
	Pane      Pane
	Stream    string
	Remaining int
	Snapshot  *booth.SnapshotResponse
	Buttons   []Button
	Dialog    bool
	Error     string
	Shots     int
}

// Frame renders the view by priority: composed snapshot, capturing indicator,
// countdown over the stream, bare stream.
func (v *View) Frame() Frame {
	f := Frame{
		Stream:    v.ActiveStream.Get(),
		Remaining: v.CountDownRemaining.Get(),
		Snapshot:  v.ActiveSnapshot.Get(),
		Dialog:    v.PrintDialogOpen.Get(),
		Error:     v.Error.Get(),
		Shots:     v.Layout.Images(),
	}

	capturing := v.CaptureActive.Get()
	counting := v.CountDownActive.Get()

	switch {
	case f.Snapshot != nil:
		f.Pane = PaneSnapshot
		f.Buttons = []Button{ButtonRetry, ButtonPrint, ButtonCancel}
	case capturing:
		f.Pane = PaneCapturing
	case counting:
		f.Pane = PaneCountdown
		f.Buttons = []Button{ButtonCancel}
	case f.Error != "":
		f.Pane = PaneStream
		f.Buttons = []Button{ButtonStart, ButtonRetry, ButtonCancel}
	default:
		f.Pane = PaneStream
		f.Buttons = []Button{ButtonStart, ButtonCancel}
	}
	return f
}

// Has reports whether the frame offers button b.
func (f Frame) Has(b Button) bool {
	for _, x := range f.Buttons {
		if x == b {
			return true
		}
	}
	return false
}
