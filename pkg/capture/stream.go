package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/Zahlii/photobooth/pkg/errors"
)

const defaultReleaseTimeout = 2 * time.Second

// StreamController owns the active-stream signal the view binds its preview to.
type StreamController struct {
	url            string
	signal         *Signal[string]
	releaser       Releaser
	releaseTimeout time.Duration
}

// NewStreamController binds the controller to a signal. A nil releaser means the view
// drops the connection synchronously when the signal changes.
func NewStreamController(url string, signal *Signal[string], releaser Releaser) *StreamController {
	return &StreamController{
		url:            url,
		signal:         signal,
		releaser:       releaser,
		releaseTimeout: defaultReleaseTimeout,
	}
}

// URL returns the backend stream endpoint.
func (s *StreamController) URL() string {
	return s.url
}

// Active reports whether the view is bound to the stream.
func (s *StreamController) Active() bool {
	return s.signal.Get() != ""
}

// Restart binds the view to the stream.
func (s *StreamController) Restart(_ context.Context) {
	if s.signal.Get() == s.url {
		return
	}
	s.signal.Set(s.url)
	slog.Debug("stream_restarted", "url", s.url)
}

// Cancel unbinds the stream and waits until the view has released the connection.
// Calling it on a cancelled stream is safe.
func (s *StreamController) Cancel(ctx context.Context) error {
	if s.signal.Get() != "" {
		s.signal.Set("")
	}
	if s.releaser == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.releaseTimeout)
	defer cancel()
	if err := s.releaser.Release(ctx); err != nil {
		slog.Warn("stream_release_failed", "url", s.url, "error", err)
		return errors.Wrap(err, "stream release")
	}
	return nil
}
