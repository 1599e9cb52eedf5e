package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/db"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/fsutil"
	"github.com/Zahlii/photobooth/pkg/mjpeg"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/Zahlii/photobooth/pkg/snapshot"
	"github.com/go-chi/chi/v5"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.config.Booth)
}

// handleSnapshot triggers the camera and returns the new capture.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.camMu.Lock()
	files, err := s.deps.Camera.Capture(r.Context(), s.deps.Images.Root())
	s.camMu.Unlock()
	if err != nil {
		slog.Error("capture_failed", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	root := s.deps.Images.Root()
	var image, cameraRaw string
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			continue
		}
		switch {
		case image == "" && fsutil.IsJPEG(rel):
			image = rel
		case cameraRaw == "" && !fsutil.IsJPEG(rel):
			cameraRaw = rel
		}
	}
	if image == "" {
		respondError(w, http.StatusInternalServerError, "capture produced no JPEG")
		return
	}

	raw := snapshot.RawName(image)
	if !fsutil.Exists(filepath.Join(root, raw)) {
		raw = image
	}
	resp, err := snapshot.FromFiles(root, image, raw, cameraRaw)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.record(resp, db.KindCapture)
	slog.Info("capture_complete", "image", resp.ImagePath, "files", len(resp.AllPaths))
	respondJSON(w, http.StatusOK, resp)
}

// handleDeleteSnapshots removes the given files and their raw twins.
func (s *Server) handleDeleteSnapshots(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	seen := make(map[string]bool)
	var paths []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		full, err := s.deps.Images.Resolve(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		paths = append(paths, full)
	}

	root := s.deps.Images.Root()
	for _, full := range paths {
		raw := filepath.Join(filepath.Dir(full), snapshot.RawName(filepath.Base(full)))
		for _, p := range []string{raw, full} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				slog.Error("snapshot_delete_failed", "path", p, "error", err)
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if s.deps.Repo != nil {
				if rel, err := filepath.Rel(root, p); err == nil {
					if err := s.deps.Repo.DeleteSnapshot(filepath.ToSlash(rel)); err != nil {
						slog.Warn("snapshot_unrecord_failed", "path", p, "error", err)
					}
				}
			}
		}
	}

	slog.Info("snapshots_deleted", "count", len(paths))
	respondJSON(w, http.StatusOK, true)
}

// handlePrint queues a print and waits for the spooler to accept it.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req booth.PrintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Images.ValidatePath(req.ImagePath); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.deps.Printer == nil {
		respondError(w, http.StatusServiceUnavailable, "printing is not configured")
		return
	}

	job, err := s.deps.Printer.Print(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("print_queued", "job_id", job.ID, "printer", job.Printer, "copies", job.Copies)
	respondJSON(w, http.StatusOK, true)
}

// handleLast returns the most recent preview frame.
func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	img := s.deps.Camera.Placeholder()
	if img == nil {
		var err error
		s.camMu.Lock()
		img, err = s.deps.Camera.Preview(r.Context())
		s.camMu.Unlock()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	data, err := fsutil.EncodeJPEG(img)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Write(data)
}

func (s *Server) handleCameraConfig(w http.ResponseWriter, r *http.Request) {
	s.camMu.Lock()
	cfg, err := s.deps.Camera.Config(r.Context())
	s.camMu.Unlock()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// handleStream serves the live preview as MJPEG.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	src := mjpeg.FrameFunc(func(ctx context.Context) ([]byte, error) {
		s.camMu.Lock()
		img, err := s.deps.Camera.Preview(ctx)
		s.camMu.Unlock()
		if err != nil {
			return nil, err
		}
		return fsutil.EncodeJPEG(img)
	})

	slog.Info("stream_opened", "remote_addr", r.RemoteAddr)
	sent, err := mjpeg.Serve(r.Context(), w, src, s.config.Stream)
	if err != nil {
		slog.Warn("stream_ended_with_error", "frames", sent, "error", err)
		return
	}
	slog.Info("stream_closed", "frames", sent)
}

func (s *Server) handleSetLayout(w http.ResponseWriter, r *http.Request) {
	var l booth.Layout
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := s.deps.Engine.SetLayout(l); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, true)
}

// handleRender composes the given captures into the active layout.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	resp, err := s.deps.Engine.Render(r.Context(), names)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, security.ErrOutsideRoot) || len(names) == 0 {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}

	s.record(resp, db.KindComposite)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAvailableLayouts(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Catalog.Layouts())
}

func (s *Server) handleLayoutImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	path, err := s.deps.Catalog.ImagePath(filename)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !fsutil.Exists(path) {
		respondError(w, http.StatusNotFound, "layout image not found")
		return
	}
	http.ServeFile(w, r, path)
}

// record tracks the files of resp so unprinted leftovers can be cleaned up later.
func (s *Server) record(resp *booth.SnapshotResponse, kind string) {
	if s.deps.Repo == nil {
		return
	}
	for _, p := range resp.AllPaths {
		k := kind
		switch p {
		case resp.ImagePath:
		case resp.ImagePathCameraRaw:
			k = db.KindCameraRaw
		default:
			if kind == db.KindCapture {
				k = db.KindRaw
			}
		}
		err := s.deps.Repo.RecordSnapshot(&db.Snapshot{
			Path:    p,
			Owner:   resp.ImagePath,
			Session: s.config.Booth.FolderName,
			Kind:    k,
		})
		if err != nil {
			slog.Warn("snapshot_record_failed", "path", p, "error", err)
		}
	}
}
