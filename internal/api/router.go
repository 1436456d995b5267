package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.requestMetrics)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/health", s.handleHealthCheck)

	// No timeout middleware: a harvest runs as long as its pages take.
	r.Post("/crawl", s.handleCrawlRequest)
	r.Route("/api", func(r chi.Router) {
		r.Post("/crawl", s.handleCrawlRequest)
		r.Get("/harvests/{id}", s.handleGetHarvest)
	})

	return r
}
