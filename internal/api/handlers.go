package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/listing-harvester/internal/domain"
	"go.uber.org/zap"
)

const maxRequestBytes = 1 << 20

const storeTimeout = 5 * time.Second

func (s *Server) handleCrawlRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := domain.DecodeHarvestRequest(body)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := req.Config()

	// The client going away does not stop a harvest.
	ctx := context.WithoutCancel(r.Context())

	summary, err := s.runHarvest(ctx, cfg)
	if err != nil {
		s.logger.Error("harvest failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := domain.CrawlResponse{
		Success:    true,
		Properties: summary.Properties,
		Total:      summary.Total,
	}
	if s.store != nil {
		saveCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := s.store.SaveHarvest(saveCtx, summary); err != nil {
			s.logger.Warn("could not store harvest", zap.String("harvest_id", summary.ID), zap.Error(err))
		} else {
			resp.HarvestID = summary.ID
		}
		cancel()
	}

	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) runHarvest(ctx context.Context, cfg domain.HarvestConfig) (summary domain.HarvestSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("harvest aborted: %v", r)
		}
	}()
	return s.newHarvester().Harvest(ctx, cfg), nil
}

func (s *Server) handleGetHarvest(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "harvest history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	summary, found, err := s.store.GetHarvest(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get harvest", zap.String("harvest_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not retrieve harvest")
		return
	}
	if !found {
		s.respondWithError(w, http.StatusNotFound, "harvest not found")
		return
	}

	s.respondWithJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := map[string]string{"status": "ok"}
	if s.store == nil {
		s.respondWithJSON(w, http.StatusOK, healthStatus)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed for redis", zap.Error(err))
		healthStatus["status"] = "degraded"
		healthStatus["redis"] = "unhealthy"
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	healthStatus["redis"] = "healthy"
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, domain.ErrorResponse{Success: false, Error: message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response, _ = json.Marshal(domain.ErrorResponse{Error: "could not encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}
