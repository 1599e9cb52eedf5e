package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ capture.Backend = (*Client)(nil)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func setupMockBackend(t *testing.T) (*Client, *[]string) {
	t.Helper()
	var deleted []string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, booth.SnapshotResponse{
			ImagePath: "a_overlay.jpg",
			ImageB64:  "data:image/jpeg;base64,AAAA",
			AllPaths:  []string{"a_overlay.jpg", "a.jpg"},
		})
	})
	mux.HandleFunc("DELETE /api/snapshots", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&deleted); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, true)
	})
	mux.HandleFunc("POST /api/print", func(w http.ResponseWriter, r *http.Request) {
		var req booth.PrintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, req.Copies <= 3)
	})
	mux.HandleFunc("POST /api/layout/render", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "template missing", http.StatusInternalServerError)
	})
	mux.HandleFunc("POST /api/layout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, false)
	})
	mux.HandleFunc("GET /api/available_layouts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []booth.Layout{{LayoutID: "single", Name: "Single", Grid: "1"}, {LayoutID: "grid", Name: "Grid", Grid: "2x2"}})
	})
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, booth.DefaultBoothConfig())
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL + "/")
	require.NoError(t, err)
	return client, &deleted
}

func TestNew_RejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"localhost:8000", "ftp://booth", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestClient_CaptureAndDelete(t *testing.T) {
	client, deleted := setupMockBackend(t)
	ctx := context.Background()

	snap, err := client.CaptureSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a_overlay.jpg", snap.ImagePath)

	ok, err := client.DeleteSnapshots(ctx, snap.AllPaths)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a_overlay.jpg", "a.jpg"}, *deleted)
}

func TestClient_PrintReturnsBackendVerdict(t *testing.T) {
	client, _ := setupMockBackend(t)

	ok, err := client.PrintSnapshot(context.Background(), booth.PrintRequest{ImagePath: "x.jpg", Copies: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.PrintSnapshot(context.Background(), booth.PrintRequest{ImagePath: "x.jpg", Copies: 9})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_StatusError(t *testing.T) {
	client, _ := setupMockBackend(t)

	_, err := client.RenderLayout(context.Background(), []string{"a.jpg"})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "template missing", se.Body)
	assert.False(t, IsNotFound(err))

	_, err = client.CameraConfig(context.Background())
	assert.True(t, IsNotFound(err))
}

func TestClient_SetLayoutRejected(t *testing.T) {
	client, _ := setupMockBackend(t)
	err := client.SetLayout(context.Background(), booth.Layout{Name: "Single"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClient_LayoutsAndConfig(t *testing.T) {
	client, _ := setupMockBackend(t)
	ctx := context.Background()

	layouts, err := client.AvailableLayouts(ctx)
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, 4, layouts[1].Images())

	cfg, err := client.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.CountdownCaptureSeconds)
	assert.Equal(t, "Canon_SELPHY_CP1500", cfg.DefaultPrinter)
}

func TestClient_URLs(t *testing.T) {
	client, err := New("http://booth.local:8000/")
	require.NoError(t, err)
	assert.Equal(t, "http://booth.local:8000/api/stream", client.StreamURL())
	assert.Equal(t, "http://booth.local:8000/api/layout/image/wedding%20frame.png", client.LayoutImageURL("wedding frame.png"))
}

func TestClient_ContextCancelled(t *testing.T) {
	client, _ := setupMockBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CaptureSnapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
