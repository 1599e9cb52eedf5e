// Package mjpeg serves and consumes multipart/x-mixed-replace JPEG preview streams.
package mjpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/Zahlii/photobooth/pkg/errors"
)

// Boundary separates frames on the wire.
const Boundary = "frame"

// ContentType is the stream's media type.
const ContentType = "multipart/x-mixed-replace;boundary=" + Boundary

// FrameSource produces preview frames. Frame blocks until the next JPEG is ready.
type FrameSource interface {
	Frame(ctx context.Context) ([]byte, error)
}

// FrameFunc adapts a function to FrameSource.
type FrameFunc func(ctx context.Context) ([]byte, error)

// Frame calls f.
func (f FrameFunc) Frame(ctx context.Context) ([]byte, error) { return f(ctx) }

// Limits caps a stream. Zero values mean unlimited.
type Limits struct {
	MaxFPS      int
	MaxDuration time.Duration
}

// DefaultLimits match what a kiosk preview needs.
var DefaultLimits = Limits{MaxFPS: 60, MaxDuration: 35 * time.Second}

// Serve writes frames from src to w until the client goes away, the source fails
// or the duration limit is hit. It returns the number of frames sent.
func Serve(ctx context.Context, w http.ResponseWriter, src FrameSource, limits Limits) (int, error) {
	if limits.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.MaxDuration)
		defer cancel()
	}

	var interval time.Duration
	if limits.MaxFPS > 0 {
		interval = time.Second / time.Duration(limits.MaxFPS)
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(Boundary); err != nil {
		return 0, errors.Wrap(err, "set boundary")
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	defer mw.Close()

	sent := 0
	last := time.Time{}
	for {
		if wait := interval - time.Since(last); interval > 0 && !last.IsZero() && wait > 0 {
			select {
			case <-ctx.Done():
				return sent, nil
			case <-time.After(wait):
			}
		}
		if ctx.Err() != nil {
			return sent, nil
		}

		frame, err := src.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return sent, nil
			}
			return sent, errors.Wrap(err, "read frame")
		}
		last = time.Now()

		if err := writePart(mw, frame); err != nil {
			slog.Debug("stream_client_gone", "frames", sent, "error", err)
			return sent, nil
		}
		if flusher != nil {
			flusher.Flush()
		}
		sent++
	}
}

func writePart(mw *multipart.Writer, frame []byte) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Length", strconv.Itoa(len(frame)))
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(frame)
	return err
}

// ReadFrames parses a stream body and calls fn for each JPEG until the body ends,
// ctx is cancelled or fn returns an error.
func ReadFrames(ctx context.Context, body io.Reader, contentType string, fn func([]byte) error) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return errors.Wrap(err, "parse content type")
	}
	if mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		return fmt.Errorf("unexpected stream content type %q", contentType)
	}

	mr := multipart.NewReader(body, params["boundary"])
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read part")
		}

		frame, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read frame")
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}
