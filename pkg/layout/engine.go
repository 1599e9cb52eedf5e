package layout

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/fsutil"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/Zahlii/photobooth/pkg/snapshot"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// Prefixes of rendered files.
const (
	CombinedPrefix        = "combined_"
	CombinedOverlayPrefix = "combined_overlay_"
)

// Overlayer is the camera side of the engine: single-image layouts show their
// template live on the camera.
type Overlayer interface {
	SetOverlay(path string) error
}

// Engine holds the active layout and renders captures into it.
type Engine struct {
	images  *security.Validator
	catalog *Catalog
	camera  Overlayer

	mu     sync.RWMutex
	active booth.Layout
}

// NewEngine creates an engine writing into the image folder guarded by images.
func NewEngine(images *security.Validator, catalog *Catalog, camera Overlayer) *Engine {
	return &Engine{
		images:  images,
		catalog: catalog,
		camera:  camera,
		active:  DefaultLayout,
	}
}

// Active returns the active layout.
func (e *Engine) Active() booth.Layout {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// HasOverlay reports whether captures of the active layout carry a composited template.
func (e *Engine) HasOverlay() bool {
	l := e.Active()
	return l.HasTemplate() && isSingle(l)
}

// SetLayout activates l and moves its template onto the camera when it is a single-image layout.
// A layout known to the catalog by id is taken from the catalog.
func (e *Engine) SetLayout(l booth.Layout) error {
	l, err := e.resolve(l)
	if err != nil {
		return err
	}

	overlay := ""
	if l.HasTemplate() {
		path, err := e.catalog.ImagePath(l.TemplateFile)
		if err != nil {
			return err
		}
		if isSingle(l) {
			overlay = path
		}
	}
	if e.camera != nil {
		if err := e.camera.SetOverlay(overlay); err != nil {
			return errors.Wrap(err, "set camera overlay")
		}
	}

	e.mu.Lock()
	e.active = l
	e.mu.Unlock()

	slog.Info("layout_activated", "layout", l.Name, "grid", l.Grid, "template", l.TemplateFile)
	return nil
}

func (e *Engine) resolve(l booth.Layout) (booth.Layout, error) {
	if l.LayoutID != "" && e.catalog != nil {
		if known, ok := e.catalog.Find(l.LayoutID); ok && known.LayoutID == l.LayoutID {
			return known, nil
		}
	}
	if l.Grid == "" {
		l.Grid = "1"
	}
	if err := l.Validate(); err != nil {
		return l, err
	}
	cols, rows, _ := booth.ParseGrid(l.Grid)
	if n := l.Images(); n != cols*rows {
		return l, fmt.Errorf("layout %q: n_images %d does not match grid %s", l.Name, n, l.Grid)
	}
	l.NImages = cols * rows
	return l, nil
}

// Render composes the most recent captures among names into the active layout.
func (e *Engine) Render(ctx context.Context, names []string) (*booth.SnapshotResponse, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("render needs at least one image")
	}
	for _, n := range names {
		if err := e.images.ValidatePath(n); err != nil {
			return nil, err
		}
	}

	l := e.Active()
	cols, rows, err := booth.ParseGrid(l.Grid)
	if err != nil {
		return nil, err
	}

	if cols*rows == 1 {
		file := names[len(names)-1]
		raw := snapshot.RawName(file)
		if !fsutil.Exists(filepath.Join(e.images.Root(), raw)) {
			raw = file
		}
		return snapshot.FromFiles(e.images.Root(), file, raw, "")
	}
	return e.renderGrid(ctx, l, cols, rows, names)
}

func (e *Engine) renderGrid(ctx context.Context, l booth.Layout, cols, rows int, names []string) (*booth.SnapshotResponse, error) {
	n := cols * rows
	if len(names) < n {
		return nil, fmt.Errorf("layout %q needs %d images, got %d", l.Name, n, len(names))
	}

	// Tiles use the overlay-free twins of the last n captures.
	raws := make([]string, n)
	for i, name := range names[len(names)-n:] {
		raws[i] = snapshot.RawName(name)
	}

	tiles := make([]image.Image, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := e.images.ValidateFile(name)
			if err != nil {
				return err
			}
			img, err := imaging.Open(path, imaging.AutoOrientation(true))
			if err != nil {
				return errors.Wrapf(err, "open %s", name)
			}
			tiles[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	width, height := tiles[0].Bounds().Dx(), tiles[0].Bounds().Dy()
	tileW, tileH := width/cols, height/rows
	canvas := imaging.New(width, height, color.Black)
	for i, tile := range tiles {
		cell := imaging.Fill(tile, tileW, tileH, imaging.Center, imaging.Lanczos)
		canvas = imaging.Paste(canvas, cell, image.Pt((i%cols)*tileW, (i/cols)*tileH))
	}

	last := filepath.Base(raws[n-1])
	combined := CombinedPrefix + last
	if err := fsutil.SaveJPEG(filepath.Join(e.images.Root(), combined), canvas); err != nil {
		return nil, err
	}
	slog.Info("layout_rendered", "layout", l.Name, "grid", l.Grid, "file", combined)

	if !l.HasTemplate() {
		return snapshot.FromFiles(e.images.Root(), combined, combined, "")
	}

	templatePath, err := e.catalog.ImagePath(l.TemplateFile)
	if err != nil {
		return nil, err
	}
	template, err := imaging.Open(templatePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open template %s", l.TemplateFile)
	}
	template = imaging.Resize(template, width, height, imaging.Lanczos)
	framed := imaging.Overlay(canvas, template, image.Pt(0, 0), 1.0)

	overlayName := CombinedOverlayPrefix + last
	if err := fsutil.SaveJPEG(filepath.Join(e.images.Root(), overlayName), framed); err != nil {
		return nil, err
	}
	return snapshot.FromFiles(e.images.Root(), overlayName, combined, "")
}

func isSingle(l booth.Layout) bool {
	cols, rows, err := booth.ParseGrid(l.Grid)
	return err == nil && cols*rows == 1
}
