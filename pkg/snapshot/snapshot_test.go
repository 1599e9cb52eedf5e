package snapshot

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJPEG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
}

func TestFromFiles_OverlayPair(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "shot_overlay.jpg", 30, 20)
	writeJPEG(t, dir, "shot.jpg", 30, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shot.cr3"), []byte("raw"), 0o644))

	resp, err := FromFiles(dir, "shot_overlay.jpg", RawName("shot_overlay.jpg"), "shot.cr3")
	require.NoError(t, err)

	assert.Equal(t, "shot_overlay.jpg", resp.ImagePath)
	assert.Equal(t, "shot.jpg", resp.ImagePathRaw)
	assert.Equal(t, "shot.cr3", resp.ImagePathCameraRaw)
	assert.True(t, strings.HasPrefix(resp.ImageB64, "data:image/jpeg;base64,"))
	assert.Equal(t, []string{"shot_overlay.jpg", "shot.jpg", "shot.cr3"}, resp.AllPaths)

	require.NotNil(t, resp.Exif)
	assert.Equal(t, 30, resp.Exif.Width)
	assert.Equal(t, 20, resp.Exif.Height)
	assert.Zero(t, resp.Exif.ISO)
}

func TestFromFiles_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "combined_a.jpg", 8, 8)

	resp, err := FromFiles(dir, "combined_a.jpg", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"combined_a.jpg"}, resp.AllPaths)
	assert.Equal(t, resp.ImageB64, resp.ImageB64Raw)
}

func TestFromFiles_Missing(t *testing.T) {
	_, err := FromFiles(t.TempDir(), "nope.jpg", "", "")
	assert.Error(t, err)
}

func TestFormatExposure(t *testing.T) {
	assert.Equal(t, "1/125", formatExposure(1, 125))
	assert.Equal(t, "1/250", formatExposure(10, 2500))
	assert.Equal(t, "2", formatExposure(2, 1))
	assert.Equal(t, "0", formatExposure(0, 1))
}

func TestRawName(t *testing.T) {
	assert.Equal(t, "a.jpg", RawName("a_overlay.jpg"))
	assert.Equal(t, "a.jpg", RawName("a.jpg"))
}
