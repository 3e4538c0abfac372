package web

import (
	"net/http"

	"github.com/glowcase/glowcase/internal/web/handlers"
	"github.com/glowcase/glowcase/internal/web/static"
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	// Create handlers
	matchHandler := handlers.NewMatchHandler(s.config, s.provider, s.store)
	statusHandler := handlers.NewStatusHandler(s.store, s.builder)
	imagesHandler := handlers.NewImagesHandler(s.config.Gallery.Dir, s.config.Uploads.Dir)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/status", statusHandler.Status)
		r.Post("/match", matchHandler.Match)
		r.Post("/rebuild", statusHandler.Rebuild)
	})

	// Image serving
	s.router.Get("/gallery/{subdir}/{filename}", imagesHandler.GalleryImage)
	s.router.Get("/uploads/{filename}", imagesHandler.UploadedImage)

	// Landing page
	s.router.Get("/", s.serveIndex)
}

// serveIndex serves the embedded landing page.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(static.IndexPage())
}
