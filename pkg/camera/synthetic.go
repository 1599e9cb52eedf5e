package camera

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/fsutil"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	defaultWidth  = 1200
	defaultHeight = 800
	labelScale    = 4
)

// Synthetic renders a moving 3:2 test card. It stands in for a webcam or DSLR.
type Synthetic struct {
	width, height int
	frame         atomic.Int64
	now           func() time.Time

	bgOnce sync.Once
	bg     *image.RGBA
}

// NewSynthetic creates a test-card device. Zero sizes fall back to 1200x800.
func NewSynthetic(width, height int) *Synthetic {
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}
	return &Synthetic{width: width, height: height, now: time.Now}
}

func (s *Synthetic) Name() string { return KindSynthetic }

func (s *Synthetic) Preview(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.frame.Add(1)
	return s.card(n, s.now().Format("15:04:05.000")), nil
}

func (s *Synthetic) Capture(ctx context.Context, dir string) ([]string, error) {
	img, err := s.Preview(ctx)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fileStem("synthetic", s.now())+".jpg")
	if err := fsutil.SaveJPEG(path, img); err != nil {
		return nil, errors.Wrap(err, "save synthetic capture")
	}
	slog.Info("synthetic_capture", "path", path)
	return []string{path}, nil
}

func (s *Synthetic) Config(ctx context.Context) (map[string]any, error) {
	return map[string]any{
		"device": KindSynthetic,
		"width":  s.width,
		"height": s.height,
	}, nil
}

func (s *Synthetic) Close() error { return nil }

// card draws a gradient, a sweeping bar and a timestamp label.
func (s *Synthetic) card(frame int64, label string) image.Image {
	s.bgOnce.Do(s.drawBackground)

	barWidth := s.width / 20
	barX := int(frame*8) % (s.width + barWidth)
	bar := imaging.New(barWidth, s.height, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	out := imaging.Overlay(s.bg, bar, image.Pt(barX-barWidth, 0), 0.35)

	text := "PHOTOBOOTH " + label
	face := basicfont.Face7x13
	textImg := image.NewRGBA(image.Rect(0, 0, font.MeasureString(face, text).Ceil()+4, face.Height+4))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(2, face.Ascent+2),
	}
	d.DrawString(text)

	scaled := imaging.Resize(textImg, textImg.Bounds().Dx()*labelScale, 0, imaging.NearestNeighbor)
	pos := image.Pt((s.width-scaled.Bounds().Dx())/2, (s.height-scaled.Bounds().Dy())/2)
	return imaging.Overlay(out, scaled, pos, 1.0)
}

func (s *Synthetic) drawBackground() {
	s.bg = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			s.bg.SetRGBA(x, y, color.RGBA{
				R: uint8(40 + 120*x/s.width),
				G: uint8(40 + 80*y/s.height),
				B: 140,
				A: 255,
			})
		}
	}
}
