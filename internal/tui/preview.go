package tui

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Zahlii/photobooth/pkg/capture"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/mjpeg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
)

const (
	defaultArtWidth = 64
	maxArtWidth     = 120
	previewInterval = 100 * time.Millisecond
)

// previewBinder keeps the MJPEG viewer attached to the view's stream signal and
// is the machine's Releaser. Attach and release are serialized so a late attach
// cannot resurrect a stream the machine has already released.
type previewBinder struct {
	mu     sync.Mutex
	viewer *mjpeg.Viewer
	events chan<- tea.Msg

	width    atomic.Int64
	lastSent atomic.Int64
}

func newPreviewBinder(client *http.Client, events chan<- tea.Msg) *previewBinder {
	b := &previewBinder{events: events}
	b.width.Store(defaultArtWidth)
	b.viewer = mjpeg.NewViewer(client, b.onFrame)
	return b
}

// bind follows sig and returns the unsubscribe function.
func (b *previewBinder) bind(sig *capture.Signal[string]) func() {
	unsub := sig.Subscribe(b.attach)

	b.mu.Lock()
	if url := sig.Get(); url != "" {
		b.viewer.Attach(url)
	}
	b.mu.Unlock()
	return unsub
}

// attach connects to url. An empty url is left to Release, which waits for the close.
func (b *previewBinder) attach(url string) {
	if url == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewer.Attach(url)
}

// Release drops the preview connection and waits until it is closed.
func (b *previewBinder) Release(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewer.Release(ctx)
}

func (b *previewBinder) setWidth(w int) {
	b.width.Store(int64(artWidth(w)))
}

func (b *previewBinder) onFrame(f mjpeg.Frame) {
	now := time.Now().UnixNano()
	if now-b.lastSent.Load() < int64(previewInterval) {
		return
	}
	b.lastSent.Store(now)

	img, err := imaging.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return
	}
	msg := previewMsg{frame: f, art: renderArt(img, int(b.width.Load()))}
	select {
	case b.events <- msg:
	default:
	}
}

func artWidth(termWidth int) int {
	w := termWidth - 6
	if w > maxArtWidth {
		w = maxArtWidth
	}
	if w < 16 {
		w = 16
	}
	return w
}

// renderArt draws img with upper half blocks: every cell carries two pixel rows.
func renderArt(img image.Image, width int) string {
	if width <= 0 {
		width = defaultArtWidth
	}
	small := imaging.Resize(img, width, 0, imaging.Box)
	b := small.Bounds()

	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			style := lipgloss.NewStyle().Foreground(hexColor(small.At(x, y)))
			if y+1 < b.Max.Y {
				style = style.Background(hexColor(small.At(x, y+1)))
			}
			sb.WriteString(style.Render("▀"))
		}
		if y+2 < b.Max.Y {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func hexColor(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}

// decodeDataURI decodes the inline image of a snapshot response.
func decodeDataURI(uri string) (image.Image, error) {
	_, payload, ok := strings.Cut(uri, ";base64,")
	if !ok {
		return nil, errors.New("not a base64 data uri")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decode base64")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	return img, nil
}
