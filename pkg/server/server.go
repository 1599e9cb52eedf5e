// Package server is the camera backend HTTP API the kiosk talks to.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/db"
	"github.com/Zahlii/photobooth/pkg/layout"
	"github.com/Zahlii/photobooth/pkg/mjpeg"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Camera is the capture device behind the API.
type Camera interface {
	Preview(ctx context.Context) (image.Image, error)
	Capture(ctx context.Context, dir string) ([]string, error)
	Config(ctx context.Context) (map[string]any, error)
	Placeholder() image.Image
}

// Printer runs print jobs to completion.
type Printer interface {
	Print(ctx context.Context, req booth.PrintRequest) (*db.PrintJob, error)
}

// Config holds the server configuration.
type Config struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	Stream          mjpeg.Limits
	Booth           booth.BoothConfig
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8000,
		RequestTimeout:  60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"http://localhost:4200", "http://127.0.0.1:4200"},
		Stream:          mjpeg.DefaultLimits,
		Booth:           booth.DefaultBoothConfig(),
	}
}

// Deps are the components the handlers drive. Repo and Printer may be nil.
type Deps struct {
	Camera  Camera
	Images  *security.Validator
	Catalog *layout.Catalog
	Engine  *layout.Engine
	Printer Printer
	Repo    *db.Repository
}

// Server represents the HTTP server of the camera backend.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	deps       Deps

	// camMu serialises access to the camera between previews and captures
	camMu sync.Mutex
}

// New creates a new Server instance with the given configuration.
func New(cfg Config, deps Deps) *Server {
	s := &Server{config: cfg, deps: deps}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// setupRouter configures the Chi router with middleware and routes.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	s.setupRoutes(r)
	return r
}

// loggingMiddleware logs HTTP requests using structured logging.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Router returns the chi router for testing
func (s *Server) Router() chi.Router {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("http_server_start", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	slog.Info("http_server_shutdown", "addr", s.httpServer.Addr)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
