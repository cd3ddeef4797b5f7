package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/facefinder/facefinder/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	referenceHandler := handlers.NewReferenceHandler(s.config, s.detector)
	searchHandler := handlers.NewSearchHandler(s.config, s.detector, s.runner, s.registry)
	jobsHandler := handlers.NewJobsHandler(s.registry)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Reference image inspection
		r.Post("/reference/faces", referenceHandler.Faces)

		// Search (sync or async, depending on the async form field)
		r.Post("/search", searchHandler.Search)

		// Async job polling and artifact download
		r.Get("/jobs/{jobId}", jobsHandler.Status)
		r.Get("/jobs/{jobId}/download", jobsHandler.Download)
	})
}
