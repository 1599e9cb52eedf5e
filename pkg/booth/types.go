// Package booth holds the data model shared by the kiosk client and the camera backend.
package booth

import (
	"fmt"
	"strconv"
	"strings"
)

// Layout describes a composition chosen on the welcome screen.
type Layout struct {
	LayoutID string `json:"layout_id" yaml:"layout_id"`
	Name     string `json:"name" yaml:"name"`
	NImages  int    `json:"n_images,omitempty" yaml:"n_images,omitempty"`

	// TemplateFile references an overlay image known to the backend. Empty means no overlay.
	TemplateFile string `json:"template_file,omitempty" yaml:"template_file,omitempty"`

	// Grid is "<cols>x<rows>", or "1" for a single image.
	Grid string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// Images returns how many individual captures the layout needs.
func (l Layout) Images() int {
	if l.NImages > 0 {
		return l.NImages
	}
	cols, rows, err := ParseGrid(l.Grid)
	if err != nil {
		return 0
	}
	return cols * rows
}

// HasTemplate reports whether the layout carries an overlay template.
func (l Layout) HasTemplate() bool {
	return l.TemplateFile != ""
}

// Validate checks that the layout can drive a capture session.
func (l Layout) Validate() error {
	if l.Name == "" && l.LayoutID == "" {
		return fmt.Errorf("layout needs a name or id")
	}
	if _, _, err := ParseGrid(l.Grid); err != nil {
		return err
	}
	if l.Images() <= 0 {
		return fmt.Errorf("layout %q requires a positive image count", l.Name)
	}
	return nil
}

// ParseGrid splits a grid kind into columns and rows. An empty kind and "1" are 1x1.
func ParseGrid(grid string) (cols, rows int, err error) {
	g := strings.ToLower(strings.TrimSpace(grid))
	if g == "" || g == "1" {
		return 1, 1, nil
	}
	c, r, ok := strings.Cut(g, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid layout grid %q", grid)
	}
	cols, err = strconv.Atoi(c)
	if err != nil || cols <= 0 {
		return 0, 0, fmt.Errorf("invalid layout grid %q", grid)
	}
	rows, err = strconv.Atoi(r)
	if err != nil || rows <= 0 {
		return 0, 0, fmt.Errorf("invalid layout grid %q", grid)
	}
	return cols, rows, nil
}

// ExifInfo carries the key EXIF values of a freshly taken picture.
type ExifInfo struct {
	ISO          int     `json:"iso,omitempty"`
	FStop        float64 `json:"fstop,omitempty"`
	ExposureTime string  `json:"exposure_time,omitempty"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
}

// SnapshotResponse is one captured or composed artifact held by the backend.
type SnapshotResponse struct {
	ImagePath string    `json:"image_path"`
	ImageB64  string    `json:"image_b64"`
	Exif      *ExifInfo `json:"exif"`

	ImagePathRaw       string `json:"image_path_raw,omitempty"`
	ImageB64Raw        string `json:"image_b64_raw,omitempty"`
	ImagePathCameraRaw string `json:"image_path_camera_raw,omitempty"`

	// AllPaths lists every server file this artifact owns. It is the delete set.
	AllPaths []string `json:"all_paths"`
}

// PrintRequest asks the backend to queue a print job.
type PrintRequest struct {
	ImagePath   string   `json:"image_path"`
	Copies      int      `json:"copies"`
	Landscape   bool     `json:"landscape"`
	PrinterName string   `json:"printer_name,omitempty"`
	CmdArgs     []string `json:"cmd_args,omitempty"`
}

// Validate checks the request before it reaches the print subsystem.
func (r PrintRequest) Validate() error {
	if r.ImagePath == "" {
		return fmt.Errorf("print request needs an image path")
	}
	if r.Copies < 1 {
		return fmt.Errorf("copies must be at least 1, got %d", r.Copies)
	}
	return nil
}

// BoothConfig is read once at start and treated as constant afterwards.
type BoothConfig struct {
	CountdownCaptureSeconds int    `json:"countdown_capture_seconds"`
	InactivityReturnSeconds int    `json:"inactivity_return_seconds"`
	BoothTitle              string `json:"booth_title"`
	DefaultPrinter          string `json:"default_printer"`
	FolderName              string `json:"folder_name,omitempty"`
	MirrorImage             bool   `json:"mirror_image"`
}

// DefaultBoothConfig returns the stock kiosk settings.
func DefaultBoothConfig() BoothConfig {
	return BoothConfig{
		CountdownCaptureSeconds: 10,
		InactivityReturnSeconds: 30,
		BoothTitle:              "Photo Booth",
		DefaultPrinter:          "Canon_SELPHY_CP1500",
		FolderName:              "new-event",
	}
}
