package printer

import (
	"image"
	"image/color"
	"os"

	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/fsutil"
	"github.com/disintegration/imaging"
)

// DefaultBorder is the white margin, in pixels, added around prints.
const DefaultBorder = 75

// AddBorder centers the image at src on a white canvas grown by border pixels on
// its long side, keeping the aspect ratio, and writes it to a new file in dir.
// The caller removes the returned file.
func AddBorder(src, dir string, border int) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", errors.Wrap(err, "open print image")
	}

	w, h := borderSize(img.Bounds().Dx(), img.Bounds().Dy(), border)
	canvas := imaging.New(w, h, color.White)
	canvas = imaging.Paste(canvas, img, image.Pt((w-img.Bounds().Dx())/2, (h-img.Bounds().Dy())/2))

	f, err := os.CreateTemp(dir, "print-*.jpg")
	if err != nil {
		return "", errors.Wrap(err, "create print file")
	}
	path := f.Name()
	f.Close()

	if err := fsutil.SaveJPEG(path, canvas); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// borderSize grows the long side by two borders and derives the short side from
// the aspect ratio, rounded up to an even number of pixels.
func borderSize(width, height, border int) (int, int) {
	aspect := float64(width) / float64(height)
	if aspect >= 1 {
		w := width + 2*border
		h := int(float64(w) / aspect)
		if h%2 != 0 {
			h++
		}
		return w, h
	}
	h := height + 2*border
	w := int(float64(h) * aspect)
	if w%2 != 0 {
		w++
	}
	return w, h
}
