package camera

import (
	"context"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/fsutil"
	"github.com/disintegration/imaging"
)

// OverlaySuffix is appended to the stem of the composited copy of a capture.
const OverlaySuffix = "_overlay"

// OverlayDevice wraps a device, optionally mirrors its frames and composites the
// active layout template on top. Captures keep the plain JPEG next to the
// composited `<stem>_overlay.jpg`.
type OverlayDevice struct {
	inner  Device
	mirror bool

	mu      sync.Mutex
	overlay image.Image
	path    string
	scaled  image.Image
	last    image.Image
}

// NewOverlayDevice wraps inner.
func NewOverlayDevice(inner Device, mirror bool) *OverlayDevice {
	return &OverlayDevice{inner: inner, mirror: mirror}
}

func (d *OverlayDevice) Name() string { return d.inner.Name() }

// SetOverlay loads the template at path. An empty path removes the overlay.
func (d *OverlayDevice) SetOverlay(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if path == "" {
		d.overlay, d.scaled, d.path = nil, nil, ""
		slog.Info("overlay_cleared")
		return nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return errors.Wrapf(err, "load overlay %s", filepath.Base(path))
	}
	d.overlay, d.scaled, d.path = img, nil, path
	slog.Info("overlay_set", "path", path, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return nil
}

// HasOverlay reports whether a template is active.
func (d *OverlayDevice) HasOverlay() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlay != nil
}

// Placeholder returns the last composited frame, or nil before the first preview.
func (d *OverlayDevice) Placeholder() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *OverlayDevice) Preview(ctx context.Context) (image.Image, error) {
	frame, err := d.inner.Preview(ctx)
	if err != nil {
		return nil, err
	}
	_, result := d.apply(frame)
	return result, nil
}

// Capture returns the composited JPEG first, then the files of the inner device.
func (d *OverlayDevice) Capture(ctx context.Context, dir string) ([]string, error) {
	files, err := d.inner.Capture(ctx, dir)
	if err != nil {
		return nil, err
	}

	jpegPath := ""
	for _, f := range files {
		if fsutil.IsJPEG(f) {
			jpegPath = f
			break
		}
	}
	if jpegPath == "" {
		return nil, errors.New("capture produced no JPEG")
	}

	img, err := imaging.Open(jpegPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "open capture")
	}

	base, result := d.apply(img)
	if d.mirror {
		if err := fsutil.SaveJPEG(jpegPath, base); err != nil {
			return nil, err
		}
	}

	ext := filepath.Ext(jpegPath)
	overlayPath := strings.TrimSuffix(jpegPath, ext) + OverlaySuffix + ext
	if err := fsutil.SaveJPEG(overlayPath, result); err != nil {
		return nil, err
	}

	return append([]string{overlayPath}, files...), nil
}

func (d *OverlayDevice) Config(ctx context.Context) (map[string]any, error) {
	cfg, err := d.inner.Config(ctx)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	cfg["mirror"] = d.mirror
	cfg["overlay"] = filepath.Base(d.path)
	if d.path == "" {
		cfg["overlay"] = nil
	}
	d.mu.Unlock()
	return cfg, nil
}

func (d *OverlayDevice) Close() error { return d.inner.Close() }

// apply mirrors img when configured and composites the overlay scaled to img's size.
func (d *OverlayDevice) apply(img image.Image) (base, result image.Image) {
	base = img
	if d.mirror {
		base = imaging.FlipH(img)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	result = base
	if d.overlay != nil {
		size := base.Bounds().Size()
		if d.scaled == nil || d.scaled.Bounds().Size() != size {
			d.scaled = imaging.Resize(d.overlay, size.X, size.Y, imaging.Lanczos)
		}
		result = imaging.Overlay(base, d.scaled, image.Pt(0, 0), 1.0)
	}
	d.last = result
	return base, result
}
