package service

import (
	"context"
	"errors"

	"island-tracker/internal/constants"
	"island-tracker/internal/domain"
	"island-tracker/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	SourceLive   = "live"
	SourceStored = "stored"
)

type Forecaster interface {
	Forecast(daily []domain.DailyRecord, monthly []domain.MonthlyRecord) *domain.ForecastResult
}

type StatsProvider interface {
	GetStats(ctx context.Context, rawCode string, opts domain.ExtractOptions, refresh bool) (*domain.IslandStats, error)
}

type ForecastResponse struct {
	MapCode  domain.MapCode         `json:"mapCode"`
	Forecast *domain.ForecastResult `json:"forecast"`
	Source   string                 `json:"source"`
}

type ForecastService struct {
	stats      StatsProvider
	store      StatsStore
	forecaster Forecaster
	logger     zerolog.Logger
}

func NewForecastService(stats StatsProvider, store StatsStore, forecaster Forecaster, logger zerolog.Logger) *ForecastService {
	return &ForecastService{
		stats:      stats,
		store:      store,
		forecaster: forecaster,
		logger:     logger.With().Str("component", "forecast_service").Logger(),
	}
}

// Forecast projects from a live scrape of both series. When the scrape fails
// or yields no daily series it falls back to the stored history; the
// scrape error is returned only if the store has nothing either. A nil
// Forecast means too little history.
func (s *ForecastService) Forecast(ctx context.Context, rawCode string, refresh bool) (*ForecastResponse, error) {
	code, err := domain.ParseMapCode(rawCode)
	if err != nil {
		return nil, err
	}

	log := s.logger.With().Str("map_code", code.String()).Logger()

	stats, scrapeErr := s.stats.GetStats(ctx, code.String(), domain.ExtractOptions{IncludeDaily: true, IncludeMonthly: true}, refresh)
	if scrapeErr == nil && len(stats.HistoricalData) > 0 {
		return s.respond(code, SourceLive, stats.HistoricalData, stats.MonthlyData), nil
	}
	if errors.Is(scrapeErr, domain.ErrInvalidInput) {
		return nil, scrapeErr
	}

	storeCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	series, err := s.store.Series(storeCtx, code, constants.StoredSeriesLimit, constants.StoredMonthsLimit)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load stored series")
	}

	if err == nil && len(series.Daily) > 0 {
		log.Info().Err(scrapeErr).Int("days", len(series.Daily)).Msg("forecasting from stored series")
		return s.respond(code, SourceStored, series.Daily, series.Monthly), nil
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}

	log.Info().Msg("no daily history to forecast from")
	return s.respond(code, SourceLive, nil, stats.MonthlyData), nil
}

func (s *ForecastService) respond(code domain.MapCode, source string, daily []domain.DailyRecord, monthly []domain.MonthlyRecord) *ForecastResponse {
	result := s.forecaster.Forecast(daily, monthly)
	if result != nil {
		metrics.ForecastsTotal.WithLabelValues(source).Inc()
	}
	return &ForecastResponse{MapCode: code, Forecast: result, Source: source}
}
