package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/user/listing-harvester/internal/config"
	"github.com/user/listing-harvester/internal/crawler"
	"github.com/user/listing-harvester/internal/domain"
	"github.com/user/listing-harvester/internal/monitoring"
	"go.uber.org/zap"
)

// HarvestStore persists finished harvest summaries.
type HarvestStore interface {
	SaveHarvest(ctx context.Context, summary domain.HarvestSummary) error
	GetHarvest(ctx context.Context, id string) (domain.HarvestSummary, bool, error)
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	harvest    crawler.Options
	store      HarvestStore // nil when snapshots are disabled
	metrics    *monitoring.Metrics
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
}

// NewServer wires the router. opts is the template every harvest run is built from.
func NewServer(cfg *config.Config, opts crawler.Options, store HarvestStore, m *monitoring.Metrics, g prometheus.Gatherer, l *zap.Logger) *Server {
	s := &Server{
		config:   cfg,
		harvest:  opts,
		store:    store,
		metrics:  m,
		gatherer: g,
		logger:   l,
	}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A harvest holds the request open until every listing is scraped.
		WriteTimeout: s.config.WriteTimeout(),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) newHarvester() *crawler.Harvester {
	return crawler.NewHarvester(s.harvest, s.metrics, s.logger)
}
