package camera

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Zahlii/photobooth/pkg/command"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/fsutil"
	"github.com/disintegration/imaging"
)

const gphoto2Bin = "gphoto2"

// GPhoto2 drives a tethered camera through the gphoto2 CLI.
type GPhoto2 struct {
	runner command.Runner
	now    func() time.Time
}

// NewGPhoto2 creates a gphoto2-backed device.
func NewGPhoto2(runner command.Runner) *GPhoto2 {
	return &GPhoto2{runner: runner, now: time.Now}
}

func (g *GPhoto2) Name() string { return KindGPhoto2 }

func (g *GPhoto2) Preview(ctx context.Context) (image.Image, error) {
	out, err := g.runner.Run(ctx, gphoto2Bin, "--capture-preview", "--stdout")
	if err != nil {
		return nil, errors.Wrap(err, "capture preview")
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, errors.Wrap(err, "decode preview")
	}
	return img, nil
}

// Capture triggers the shutter and downloads every file the camera produced
// (JPEG plus RAW when the camera is set to RAW+JPEG).
func (g *GPhoto2) Capture(ctx context.Context, dir string) ([]string, error) {
	stem := fileStem("dslr", g.now())
	slog.Info("gphoto2_capture_start", "stem", stem)

	_, err := g.runner.Run(ctx, gphoto2Bin,
		"--capture-image-and-download",
		"--force-overwrite",
		"--filename", filepath.Join(dir, stem+".%C"))
	if err != nil {
		return nil, errors.Wrap(err, "capture image")
	}

	files, err := filepath.Glob(filepath.Join(dir, stem+".*"))
	if err != nil {
		return nil, errors.Wrap(err, "list captured files")
	}
	files = jpegFirst(files)
	if len(files) == 0 || !fsutil.IsJPEG(files[0]) {
		return nil, errors.New("camera produced no JPEG, enable RAW+JPEG or JPEG mode")
	}

	slog.Info("gphoto2_capture_complete", "files", files)
	return files, nil
}

// Config parses `gphoto2 --summary` into key/value pairs.
func (g *GPhoto2) Config(ctx context.Context) (map[string]any, error) {
	out, err := g.runner.Run(ctx, gphoto2Bin, "--summary")
	if err != nil {
		return nil, errors.Wrap(err, "camera summary")
	}

	cfg := map[string]any{"device": KindGPhoto2}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if _, dup := cfg[key]; !dup {
			cfg[key] = value
		}
	}
	return cfg, nil
}

func (g *GPhoto2) Close() error { return nil }

func jpegFirst(files []string) []string {
	var out []string
	for _, f := range files {
		if info, err := os.Stat(f); err != nil || info.IsDir() {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fsutil.IsJPEG(out[i]) && !fsutil.IsJPEG(out[j])
	})
	return out
}
