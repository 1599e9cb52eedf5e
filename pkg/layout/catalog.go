// Package layout loads the layout catalog and renders captures into composed prints.
package layout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Catalog file names, in lookup order.
var catalogFiles = []string{"layouts.json", "layouts.yaml", "layouts.yml"}

const reloadDebounce = 200 * time.Millisecond

// DefaultLayout is served when the layouts folder has no catalog file.
var DefaultLayout = booth.Layout{LayoutID: "default", Name: "Default", Grid: "1", NImages: 1}

// Catalog is the set of layouts defined in a layouts folder, together with their
// template images.
type Catalog struct {
	dir       string
	validator *security.Validator

	mu      sync.RWMutex
	file    string
	layouts []booth.Layout
}

// LoadCatalog reads the catalog in dir.
func LoadCatalog(dir string) (*Catalog, error) {
	v, err := security.NewValidator(dir, 0)
	if err != nil {
		return nil, err
	}
	c := &Catalog{dir: v.Root(), validator: v}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the layouts folder.
func (c *Catalog) Dir() string {
	return c.dir
}

// Layouts returns a copy of the current layouts.
func (c *Catalog) Layouts() []booth.Layout {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]booth.Layout(nil), c.layouts...)
}

// Find looks a layout up by id, falling back to its name.
func (c *Catalog) Find(id string) (booth.Layout, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.layouts {
		if l.LayoutID == id {
			return l, true
		}
	}
	for _, l := range c.layouts {
		if strings.EqualFold(l.Name, id) {
			return l, true
		}
	}
	return booth.Layout{}, false
}

// ImagePath resolves a template file name inside the layouts folder.
func (c *Catalog) ImagePath(filename string) (string, error) {
	return c.validator.Resolve(filename)
}

// Reload re-reads the catalog file. On error the previous layouts stay active.
func (c *Catalog) Reload() error {
	path, layouts, err := c.read()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.file = path
	c.layouts = layouts
	c.mu.Unlock()

	slog.Info("layouts_loaded", "file", path, "count", len(layouts))
	return nil
}

func (c *Catalog) read() (string, []booth.Layout, error) {
	for _, name := range catalogFiles {
		path := filepath.Join(c.dir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", nil, errors.Wrapf(err, "read %s", name)
		}

		layouts, err := parse(name, data)
		if err != nil {
			return "", nil, errors.Wrapf(err, "parse %s", name)
		}
		if err := c.check(layouts); err != nil {
			return "", nil, errors.Wrapf(err, "invalid %s", name)
		}
		return path, layouts, nil
	}

	slog.Warn("layouts_catalog_missing", "dir", c.dir)
	return "", []booth.Layout{DefaultLayout}, nil
}

func parse(name string, data []byte) ([]booth.Layout, error) {
	var layouts []booth.Layout
	var err error
	if filepath.Ext(name) == ".json" {
		err = json.Unmarshal(data, &layouts)
	} else {
		err = yaml.Unmarshal(data, &layouts)
	}
	if err != nil {
		return nil, err
	}

	for i := range layouts {
		l := &layouts[i]
		if l.LayoutID == "" {
			l.LayoutID = slug(l.Name)
		}
		if l.Grid == "" {
			l.Grid = "1"
		}
		if l.NImages == 0 {
			l.NImages = l.Images()
		}
	}
	return layouts, nil
}

func (c *Catalog) check(layouts []booth.Layout) error {
	if len(layouts) == 0 {
		return fmt.Errorf("no layouts defined")
	}
	seen := make(map[string]bool)
	for _, l := range layouts {
		if err := l.Validate(); err != nil {
			return err
		}
		cols, rows, _ := booth.ParseGrid(l.Grid)
		if l.NImages != cols*rows {
			return fmt.Errorf("layout %q: n_images %d does not match grid %s", l.Name, l.NImages, l.Grid)
		}
		if seen[l.LayoutID] {
			return fmt.Errorf("duplicate layout id %q", l.LayoutID)
		}
		seen[l.LayoutID] = true

		if l.HasTemplate() {
			path, err := c.validator.Resolve(l.TemplateFile)
			if err != nil {
				return errors.Wrapf(err, "layout %q template", l.Name)
			}
			if _, err := os.Stat(path); err != nil {
				return errors.Wrapf(err, "layout %q template", l.Name)
			}
		}
	}
	return nil
}

// Watch reloads the catalog whenever a catalog file in the folder changes, until ctx ends.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return errors.Wrap(err, "watch layouts folder")
	}

	go func() {
		defer watcher.Close()
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isCatalogFile(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce = time.After(reloadDebounce)
				}
			case <-debounce:
				debounce = nil
				if err := c.Reload(); err != nil {
					slog.Error("layouts_reload_failed", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("layouts_watch_error", "error", err)
			}
		}
	}()
	return nil
}

func isCatalogFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range catalogFiles {
		if base == name {
			return true
		}
	}
	return false
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
