// Package backend is the HTTP client the kiosk uses to drive the camera backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/errors"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 512
)

// ErrRejected is returned when the backend answered a boolean operation with false.
var ErrRejected = errors.New("backend rejected the request")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// Client talks to the camera backend under <base>/api.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the backend at baseURL, e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid backend url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: missing host", baseURL)
	}

	c := &Client{
		base: u.String(),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveURL builds an absolute URL for an endpoint below /api.
func (c *Client) resolveURL(endpoint string) string {
	return c.base + "/api/" + strings.TrimLeft(endpoint, "/")
}

// CaptureSnapshot takes one picture.
func (c *Client) CaptureSnapshot(ctx context.Context) (*booth.SnapshotResponse, error) {
	return doJSON[booth.SnapshotResponse](ctx, c, http.MethodGet, "snapshot", nil)
}

// DeleteSnapshots removes the given server files. Missing files are not an error.
func (c *Client) DeleteSnapshots(ctx context.Context, paths []string) (bool, error) {
	return c.doBool(ctx, http.MethodDelete, "snapshots", paths)
}

// PrintSnapshot queues a print job.
func (c *Client) PrintSnapshot(ctx context.Context, req booth.PrintRequest) (bool, error) {
	return c.doBool(ctx, http.MethodPost, "print", req)
}

// RenderLayout composes the captures into the active layout.
func (c *Client) RenderLayout(ctx context.Context, paths []string) (*booth.SnapshotResponse, error) {
	return doJSON[booth.SnapshotResponse](ctx, c, http.MethodPost, "layout/render", paths)
}

// SetLayout activates a layout on the backend.
func (c *Client) SetLayout(ctx context.Context, layout booth.Layout) error {
	ok, err := c.doBool(ctx, http.MethodPost, "layout", layout)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrRejected, "set layout")
	}
	return nil
}

// AvailableLayouts lists the layouts the backend can render.
func (c *Client) AvailableLayouts(ctx context.Context) ([]booth.Layout, error) {
	layouts, err := doJSON[[]booth.Layout](ctx, c, http.MethodGet, "available_layouts", nil)
	if err != nil {
		return nil, err
	}
	return *layouts, nil
}

// Config fetches the booth configuration.
func (c *Client) Config(ctx context.Context) (*booth.BoothConfig, error) {
	return doJSON[booth.BoothConfig](ctx, c, http.MethodGet, "config", nil)
}

// CameraConfig fetches the camera's current settings tree.
func (c *Client) CameraConfig(ctx context.Context) (map[string]any, error) {
	cfg, err := doJSON[map[string]any](ctx, c, http.MethodGet, "camera_config", nil)
	if err != nil {
		return nil, err
	}
	return *cfg, nil
}

// StreamURL is the MJPEG preview endpoint.
func (c *Client) StreamURL() string {
	return c.resolveURL("stream")
}

// LayoutImageURL is the download URL of a layout template image.
func (c *Client) LayoutImageURL(filename string) string {
	return c.resolveURL("layout/image/" + url.PathEscape(filename))
}

func (c *Client) doBool(ctx context.Context, method, endpoint string, body any) (bool, error) {
	ok, err := doJSON[bool](ctx, c, method, endpoint, body)
	if err != nil {
		return false, err
	}
	return *ok, nil
}

// doJSON performs one request with an optional JSON body and decodes the JSON answer.
func doJSON[T any](ctx context.Context, c *Client, method, endpoint string, requestBody any, expectedStatuses ...int) (*T, error) {
	if len(expectedStatuses) == 0 {
		expectedStatuses = []int{http.StatusOK}
	}
	op := method + " " + endpoint

	var bodyReader io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: could not marshal request body", op)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(endpoint), bodyReader)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: could not create request", op)
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: could not send request", op)
	}
	defer resp.Body.Close()

	if !slices.Contains(expectedStatuses, resp.StatusCode) {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrapf(err, "%s: could not decode response", op)
	}
	return &result, nil
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
