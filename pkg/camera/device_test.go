package camera

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zahlii/photobooth/pkg/command"
	"github.com/Zahlii/photobooth/pkg/fsutil"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dev, err := Open("", Options{Width: 60, Height: 40})
	require.NoError(t, err)
	assert.Equal(t, KindSynthetic, dev.Name())

	dev, err = Open(KindGPhoto2, Options{})
	require.NoError(t, err)
	assert.Equal(t, KindGPhoto2, dev.Name())

	_, err = Open("webcam9000", Options{})
	assert.Error(t, err)
}

func TestSynthetic_PreviewAndCapture(t *testing.T) {
	dev := NewSynthetic(120, 80)
	frame, err := dev.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(120, 80), frame.Bounds().Size())

	dir := t.TempDir()
	files, err := dev.Capture(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "synthetic_"))
	assert.True(t, fsutil.Exists(files[0]))
}

func TestOverlayDevice_CaptureWritesOverlayTwin(t *testing.T) {
	dir := t.TempDir()
	overlayPath := filepath.Join(dir, "frame.png")
	red := imaging.New(10, 10, color.NRGBA{R: 255, A: 255})
	require.NoError(t, imaging.Save(red, overlayPath))

	dev := NewOverlayDevice(NewSynthetic(60, 40), true)
	assert.Nil(t, dev.Placeholder())
	require.NoError(t, dev.SetOverlay(overlayPath))
	assert.True(t, dev.HasOverlay())

	files, err := dev.Capture(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.True(t, strings.HasSuffix(files[0], "_overlay.jpg"))
	assert.Equal(t, strings.Replace(files[0], OverlaySuffix, "", 1), files[1])

	composited, err := imaging.Open(files[0])
	require.NoError(t, err)
	assert.Equal(t, 60, composited.Bounds().Dx())
	r, g, _, _ := composited.At(30, 20).RGBA()
	assert.Greater(t, r, g, "opaque red overlay covers the frame")
	assert.NotNil(t, dev.Placeholder())

	require.NoError(t, dev.SetOverlay(""))
	assert.False(t, dev.HasOverlay())
	cfg, err := dev.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, cfg["mirror"])
	assert.Nil(t, cfg["overlay"])
}

func TestOverlayDevice_MissingTemplate(t *testing.T) {
	dev := NewOverlayDevice(NewSynthetic(60, 40), false)
	assert.Error(t, dev.SetOverlay(filepath.Join(t.TempDir(), "missing.png")))
	assert.False(t, dev.HasOverlay())
}

func TestGPhoto2_Capture(t *testing.T) {
	dir := t.TempDir()
	var calls [][]string
	runner := command.RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		pattern := args[len(args)-1]
		stem := strings.TrimSuffix(pattern, ".%C")
		require.NoError(t, os.WriteFile(stem+".cr3", []byte("raw"), 0o644))
		require.NoError(t, fsutil.SaveJPEG(stem+".jpg", image.NewRGBA(image.Rect(0, 0, 4, 4))))
		return nil, nil
	})

	files, err := NewGPhoto2(runner).Capture(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.True(t, strings.HasSuffix(files[0], ".jpg"))
	assert.True(t, strings.HasSuffix(files[1], ".cr3"))
	require.Len(t, calls, 1)
	assert.Equal(t, "--capture-image-and-download", calls[0][1])
}

func TestGPhoto2_CaptureWithoutJPEG(t *testing.T) {
	runner := command.RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		stem := strings.TrimSuffix(args[len(args)-1], ".%C")
		return nil, os.WriteFile(stem+".cr3", []byte("raw"), 0o644)
	})
	_, err := NewGPhoto2(runner).Capture(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestGPhoto2_Config(t *testing.T) {
	runner := command.RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Camera summary:\nManufacturer: Canon Inc.\nModel: Canon EOS R6m2\n  Version: 1-1.2.0\n"), nil
	})
	cfg, err := NewGPhoto2(runner).Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Canon EOS R6m2", cfg["Model"])
	assert.Equal(t, KindGPhoto2, cfg["device"])
	_, hasHeader := cfg["Camera summary"]
	assert.False(t, hasHeader)
}
