package mjpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Zahlii/photobooth/pkg/errors"
)

const reconnectDelay = 500 * time.Millisecond

// Frame is one decoded preview frame header plus its JPEG bytes.
type Frame struct {
	Seq    int64
	Data   []byte
	Width  int
	Height int
	At     time.Time
}

// Viewer holds at most one open preview connection. It reconnects while attached,
// since the backend closes streams after a fixed duration.
type Viewer struct {
	client  *http.Client
	onFrame func(Frame)

	mu     sync.Mutex
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	last   Frame
	err    error
}

// NewViewer creates a detached viewer. onFrame may be nil; it runs on the viewer goroutine.
func NewViewer(client *http.Client, onFrame func(Frame)) *Viewer {
	if client == nil {
		client = &http.Client{}
	}
	return &Viewer{client: client, onFrame: onFrame}
}

// Attach connects to url, dropping any previous connection. An empty url detaches.
// It never blocks.
func (v *Viewer) Attach(url string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if url == v.url && v.cancel != nil {
		return
	}
	v.stopLocked()
	v.url = url
	if url == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	v.cancel, v.done = cancel, done
	v.err = nil
	go v.run(ctx, url, done)
}

// Detach drops the connection without waiting for it to close.
func (v *Viewer) Detach() {
	v.Attach("")
}

// Release detaches and blocks until the connection is closed.
func (v *Viewer) Release(ctx context.Context) error {
	v.mu.Lock()
	done := v.done
	v.stopLocked()
	v.url = ""
	v.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "preview connection still open")
	}
}

// Attached reports whether the viewer is bound to a stream.
func (v *Viewer) Attached() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancel != nil
}

// Last returns the most recent frame.
func (v *Viewer) Last() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Err returns the last connection error, cleared on attach.
func (v *Viewer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *Viewer) stopLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.done = nil
}

func (v *Viewer) run(ctx context.Context, url string, done chan struct{}) {
	defer close(done)
	for {
		err := v.stream(ctx, url)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("preview_stream_error", "url", url, "error", err)
			v.mu.Lock()
			v.err = err
			v.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (v *Viewer) stream(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := v.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("preview stream returned status %d", resp.StatusCode)
	}

	return ReadFrames(ctx, resp.Body, resp.Header.Get("Content-Type"), func(data []byte) error {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			slog.Debug("preview_frame_skipped", "bytes", len(data), "error", err)
			return nil
		}

		v.mu.Lock()
		if ctx.Err() != nil {
			v.mu.Unlock()
			return ctx.Err()
		}
		frame := Frame{Seq: v.last.Seq + 1, Data: data, Width: cfg.Width, Height: cfg.Height, At: time.Now()}
		v.last = frame
		v.mu.Unlock()

		if v.onFrame != nil {
			v.onFrame(frame)
		}
		return nil
	})
}
