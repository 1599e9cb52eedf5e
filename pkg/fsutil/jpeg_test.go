package fsutil

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, SaveJPEG(path, image.NewRGBA(image.Rect(0, 0, 12, 9))))
	assert.True(t, Exists(path))

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
}

func TestIsJPEG(t *testing.T) {
	assert.True(t, IsJPEG("a.JPG"))
	assert.True(t, IsJPEG("dir/a.jpeg"))
	assert.False(t, IsJPEG("a.cr3"))
	assert.False(t, IsJPEG("a"))
}
