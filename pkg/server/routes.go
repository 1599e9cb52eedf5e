package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// The preview stream outlives any request timeout.
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			if s.config.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.config.RequestTimeout))
			}

			// Capture and files
			r.Get("/snapshot", s.handleSnapshot)
			r.Delete("/snapshots", s.handleDeleteSnapshots)
			r.Post("/print", s.handlePrint)
			r.Get("/last", s.handleLast)
			r.Get("/camera_config", s.handleCameraConfig)

			// Layouts
			r.Post("/layout", s.handleSetLayout)
			r.Post("/layout/render", s.handleRender)
			r.Get("/available_layouts", s.handleAvailableLayouts)
			r.Get("/layout/image/{filename}", s.handleLayoutImage)

			// Booth
			r.Get("/config", s.handleConfig)
		})
	})
}
