// Package fsutil holds file helpers shared by the camera, layout and printer packages.
package fsutil

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/disintegration/imaging"
)

// JPEGQuality is used for every JPEG the booth writes.
const JPEGQuality = 95

// EncodeJPEG encodes img at the booth's JPEG quality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// SaveJPEG atomically writes img as a JPEG.
func SaveJPEG(path string, img image.Image) error {
	data, err := EncodeJPEG(img)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	return nil
}

// IsJPEG reports whether name has a JPEG extension.
func IsJPEG(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
