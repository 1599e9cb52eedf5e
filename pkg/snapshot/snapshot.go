// Package snapshot turns files in the image folder into API snapshot responses.
package snapshot

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// Canon and Nikon maker notes
	exif.RegisterParsers(mknote.All...)
}

// OverlaySuffix marks a JPEG that carries the layout overlay next to its raw twin.
const OverlaySuffix = "_overlay"

// RawName returns the name of the overlay-free twin of name.
func RawName(name string) string {
	return strings.Replace(name, OverlaySuffix, "", 1)
}

// DataURI encodes JPEG bytes for inline display.
func DataURI(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

// FromFiles builds the response for an image and its raw twin, both relative to root.
// cameraRaw is the optional camera RAW companion. all_paths lists every distinct file.
func FromFiles(root, image, raw, cameraRaw string) (*booth.SnapshotResponse, error) {
	if raw == "" {
		raw = image
	}

	imageBytes, err := os.ReadFile(filepath.Join(root, image))
	if err != nil {
		return nil, errors.Wrapf(err, "read image %s", image)
	}
	rawBytes := imageBytes
	if raw != image {
		rawBytes, err = os.ReadFile(filepath.Join(root, raw))
		if err != nil {
			return nil, errors.Wrapf(err, "read raw image %s", raw)
		}
	}
	if cameraRaw != "" {
		if _, err := os.Stat(filepath.Join(root, cameraRaw)); err != nil {
			return nil, errors.Wrapf(err, "camera raw %s", cameraRaw)
		}
	}

	resp := &booth.SnapshotResponse{
		ImagePath:          filepath.ToSlash(image),
		ImageB64:           DataURI(imageBytes),
		ImagePathRaw:       filepath.ToSlash(raw),
		ImageB64Raw:        DataURI(rawBytes),
		ImagePathCameraRaw: filepath.ToSlash(cameraRaw),
		Exif:               Exif(imageBytes),
	}
	resp.AllPaths = appendUnique(nil, resp.ImagePath, resp.ImagePathRaw, resp.ImagePathCameraRaw)
	return resp, nil
}

// Exif extracts the key exposure values. Dimensions come from the JPEG header, so they
// are filled even when the file carries no EXIF block. It returns nil for undecodable data.
func Exif(data []byte) *booth.ExifInfo {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		slog.Debug("exif_image_undecodable", "error", err)
		return nil
	}
	info := &booth.ExifInfo{Width: cfg.Width, Height: cfg.Height}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// Webcam and synthetic frames have no EXIF block.
		return info
	}

	if isoTag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := isoTag.Int(0); err == nil {
			info.ISO = iso
		}
	}
	if fTag, err := x.Get(exif.FNumber); err == nil {
		if f, err := fTag.Float(0); err == nil {
			info.FStop = f
		}
	}
	if expTag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := expTag.Rat2(0); err == nil && den != 0 {
			info.ExposureTime = formatExposure(num, den)
		} else {
			info.ExposureTime = strings.Trim(expTag.String(), `"`)
		}
	}
	return info
}

func formatExposure(num, den int64) string {
	if num == 0 {
		return "0"
	}
	if num >= den {
		return fmt.Sprintf("%g", float64(num)/float64(den))
	}
	return fmt.Sprintf("1/%d", den/num)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
