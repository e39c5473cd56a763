package server

import (
	"context"
	"net/http"

	"island-tracker/internal/constants"
	"island-tracker/internal/domain"
	"island-tracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type StatsService interface {
	GetStats(ctx context.Context, rawCode string, opts domain.ExtractOptions, refresh bool) (*domain.IslandStats, error)
	History(ctx context.Context, rawCode string) (*domain.StoredSeries, error)
}

type ForecastService interface {
	Forecast(ctx context.Context, rawCode string, refresh bool) (*service.ForecastResponse, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type IslandServer struct {
	stats     StatsService
	forecasts ForecastService
	store     Pinger
	validator *Validator
	logger    zerolog.Logger
}

func NewIslandServer(stats StatsService, forecasts ForecastService, store Pinger, logger zerolog.Logger) *IslandServer {
	return &IslandServer{
		stats:     stats,
		forecasts: forecasts,
		store:     store,
		validator: NewValidator(),
		logger:    logger,
	}
}

type islandQuery struct {
	Code    string `validate:"required,mapcode"`
	History bool
	Yearly  bool
	Refresh bool
}

func parseIslandQuery(r *http.Request) islandQuery {
	q := r.URL.Query()
	return islandQuery{
		Code:    q.Get("code"),
		History: queryBool(q.Get("history")),
		Yearly:  queryBool(q.Get("yearly")),
		Refresh: queryBool(q.Get("refresh")),
	}
}

// queryBool accepts only the literal "true"; any other value is false.
func queryBool(v string) bool {
	return v == "true"
}

// GetStats handles GET /api/fortnite-stats.
func (s *IslandServer) GetStats(w http.ResponseWriter, r *http.Request) {
	q := parseIslandQuery(r)
	if err := s.validator.Struct(q); err != nil {
		respondError(w, r, err)
		return
	}

	opts := domain.ExtractOptions{IncludeDaily: q.History, IncludeMonthly: q.Yearly}
	stats, err := s.stats.GetStats(r.Context(), q.Code, opts, q.Refresh)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stats)
}

// GetForecast handles GET /api/forecast.
func (s *IslandServer) GetForecast(w http.ResponseWriter, r *http.Request) {
	q := parseIslandQuery(r)
	if err := s.validator.Struct(q); err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := s.forecasts.Forecast(r.Context(), q.Code, q.Refresh)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// GetHistory handles GET /api/islands/{code}/history.
func (s *IslandServer) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := islandQuery{Code: chi.URLParam(r, "code")}
	if err := s.validator.Struct(q); err != nil {
		respondError(w, r, err)
		return
	}

	series, err := s.stats.History(r.Context(), q.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, series)
}

func (s *IslandServer) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *IslandServer) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("readiness check failed")
		respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
