package capture

import "time"

// Clock creates tickers. Tests inject a manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the wall-clock Clock.
type SystemClock struct{}

// NewTicker wraps time.NewTicker.
func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

const tickInterval = time.Second

// Watchdog counts idle seconds and reports when the limit is reached.
// A limit of zero or less disables it.
type Watchdog struct {
	clock   Clock
	ticker  Ticker
	limit   int
	elapsed int
}

// NewWatchdog creates a stopped watchdog.
func NewWatchdog(clock Clock, limitSeconds int) *Watchdog {
	return &Watchdog{clock: clock, limit: limitSeconds}
}

// Start (re)starts the tick counter from zero.
func (w *Watchdog) Start() {
	w.Stop()
	if w.limit <= 0 {
		return
	}
	w.elapsed = 0
	w.ticker = w.clock.NewTicker(tickInterval)
}

// Reset cancels and restarts the tick counter. It is a no-op on a stopped watchdog.
func (w *Watchdog) Reset() {
	if w.ticker == nil {
		return
	}
	w.Start()
}

// Stop cancels the watchdog.
func (w *Watchdog) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
		w.ticker = nil
	}
}

// Active reports whether the watchdog is ticking.
func (w *Watchdog) Active() bool {
	return w.ticker != nil
}

// Elapsed returns the ticks counted since the last reset.
func (w *Watchdog) Elapsed() int {
	return w.elapsed
}

// C returns the tick channel, or nil when stopped so a select never fires on it.
func (w *Watchdog) C() <-chan time.Time {
	if w.ticker == nil {
		return nil
	}
	return w.ticker.C()
}

// Tick counts one second and reports whether the limit has been reached.
func (w *Watchdog) Tick() bool {
	w.elapsed++
	return w.elapsed >= w.limit
}

// Countdown counts down to zero at one-second intervals.
type Countdown struct {
	clock     Clock
	ticker    Ticker
	remaining int
}

// NewCountdown creates a stopped countdown.
func NewCountdown(clock Clock) *Countdown {
	return &Countdown{clock: clock}
}

// Start begins counting down from seconds.
func (c *Countdown) Start(seconds int) {
	c.Stop()
	c.remaining = seconds
	c.ticker = c.clock.NewTicker(tickInterval)
}

// Stop cancels the countdown and keeps the last remaining value.
func (c *Countdown) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// Active reports whether the countdown is running.
func (c *Countdown) Active() bool {
	return c.ticker != nil
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	return c.remaining
}

// C returns the tick channel, or nil when stopped.
func (c *Countdown) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C()
}

// Tick counts one second down. When zero is reached the countdown stops and done is true.
func (c *Countdown) Tick() (remaining int, done bool) {
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.Stop()
		return 0, true
	}
	return c.remaining, false
}
