// Package camera provides the capture devices behind the dev backend.
package camera

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/Zahlii/photobooth/pkg/command"
	"github.com/google/uuid"
)

// Device produces preview frames and full-resolution captures.
type Device interface {
	// Name identifies the device in logs and /camera_config.
	Name() string

	// Preview returns a live frame.
	Preview(ctx context.Context) (image.Image, error)

	// Capture takes a picture into dir and returns the written files, JPEG first.
	Capture(ctx context.Context, dir string) ([]string, error)

	// Config returns the device settings.
	Config(ctx context.Context) (map[string]any, error)

	Close() error
}

// Device kinds
const (
	KindSynthetic = "synthetic"
	KindGPhoto2   = "gphoto2"
)

// Options configure Open.
type Options struct {
	Width  int
	Height int
	Runner command.Runner
}

// Open creates a device of the given kind.
func Open(kind string, opts Options) (Device, error) {
	switch kind {
	case KindSynthetic, "":
		return NewSynthetic(opts.Width, opts.Height), nil
	case KindGPhoto2:
		runner := opts.Runner
		if runner == nil {
			runner = command.Exec{}
		}
		return NewGPhoto2(runner), nil
	default:
		return nil, fmt.Errorf("unknown camera kind %q", kind)
	}
}

// fileStem names a capture so files sort by time and never collide.
func fileStem(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", prefix, now.Format("20060102_150405"), uuid.NewString()[:8])
}
