package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"island-tracker/internal/config"
	"island-tracker/internal/constants"
	"island-tracker/internal/domain"
	"island-tracker/internal/metrics"
	"island-tracker/internal/scraper"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// errCallerGone marks extractions abandoned because the caller went away.
// They say nothing about the source and are not counted by the breaker.
var errCallerGone = errors.New("caller cancelled")

// StatsStore is the part of the stats repository the services need.
type StatsStore interface {
	Save(ctx context.Context, stats *domain.IslandStats) error
	Series(ctx context.Context, code domain.MapCode, dailyLimit, monthlyLimit int) (*domain.StoredSeries, error)
	Island(ctx context.Context, code domain.MapCode) (*domain.IslandStats, error)
}

type StatsService struct {
	extractor scraper.PageExtractor
	store     StatsStore
	cache     *statsCache
	sessions  *semaphore.Weighted
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[*domain.Extraction]
	persist   *errgroup.Group
	now       func() time.Time
	logger    zerolog.Logger
}

func NewStatsService(extractor scraper.PageExtractor, store StatsStore, cfg *config.Config, logger zerolog.Logger) *StatsService {
	logger = logger.With().Str("component", "stats_service").Logger()

	persist := new(errgroup.Group)
	persist.SetLimit(constants.PersistWorkers)

	// The limiter paces navigations to the source; a burst of one keeps
	// simultaneous requests from landing in the same instant.
	limit := rate.Every(time.Minute / time.Duration(cfg.ScrapeRatePerMinute))

	return &StatsService{
		extractor: extractor,
		store:     store,
		cache:     newStatsCache(cfg.CacheSize, cfg.CacheTTL),
		sessions:  semaphore.NewWeighted(int64(cfg.MaxBrowserSessions)),
		limiter:   rate.NewLimiter(limit, 1),
		breaker:   newSourceBreaker(logger),
		persist:   persist,
		now:       time.Now,
		logger:    logger,
	}
}

func newSourceBreaker(logger zerolog.Logger) *gobreaker.CircuitBreaker[*domain.Extraction] {
	metrics.CircuitBreakerState.WithLabelValues(constants.BreakerName).Set(0)

	return gobreaker.NewCircuitBreaker[*domain.Extraction](gobreaker.Settings{
		Name:        constants.BreakerName,
		MaxRequests: constants.BreakerMaxRequests,
		Interval:    constants.BreakerInterval,
		Timeout:     constants.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < constants.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= constants.BreakerTripRatio
		},
		// A missing island or bad code says nothing about the source's health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, errCallerGone) ||
				errors.Is(err, domain.ErrInvalidInput) ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, domain.ErrStatsNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// GetStats returns the island snapshot plus the requested series. Cached
// results are served unless refresh is set; fresh results are stored in the
// background.
func (s *StatsService) GetStats(ctx context.Context, rawCode string, opts domain.ExtractOptions, refresh bool) (*domain.IslandStats, error) {
	code, err := domain.ParseMapCode(rawCode)
	if err != nil {
		return nil, err
	}

	log := s.logger.With().Str("map_code", code.String()).Logger()

	if !refresh {
		if cached, ok := s.cache.Get(code, opts); ok {
			log.Debug().Msg("returning cached stats")
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	extraction, err := s.scrape(ctx, code, opts)
	if err != nil {
		log.Warn().Err(err).Msg("scrape failed")
		return nil, err
	}

	stats := &domain.IslandStats{
		Snapshot:       extraction.Snapshot,
		ScrapedAt:      s.now().UTC(),
		HistoricalData: extraction.Daily,
		MonthlyData:    extraction.Monthly,
	}

	if refresh {
		s.cache.Invalidate(code)
	}
	s.cache.Set(code, opts, stats)
	s.save(stats)

	log.Info().
		Int("player_count", stats.PlayerCount).
		Int("days", len(stats.HistoricalData)).
		Int("months", len(stats.MonthlyData)).
		Msg("stats scraped")
	return stats, nil
}

func (s *StatsService) scrape(ctx context.Context, code domain.MapCode, opts domain.ExtractOptions) (*domain.Extraction, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for scrape slot: %w", domain.ErrTimeout, err)
	}
	if err := s.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for browser session: %w", domain.ErrTimeout, err)
	}
	metrics.BrowserSessionsInUse.Inc()
	defer func() {
		metrics.BrowserSessionsInUse.Dec()
		s.sessions.Release(1)
	}()

	start := time.Now()
	extraction, err := s.breaker.Execute(func() (*domain.Extraction, error) {
		extraction, err := s.extractor.Extract(ctx, code, opts)
		if err != nil && errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return extraction, err
	})
	metrics.ScrapeDuration.Observe(time.Since(start).Seconds())
	metrics.ScrapesTotal.WithLabelValues(outcome(err)).Inc()

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: source temporarily unavailable: %w", domain.ErrNetworkFailure, err)
	}
	return extraction, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, errCallerGone):
		return "cancelled"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStatsNotFound):
		return "stats_not_found"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrNetworkFailure):
		return "network_failure"
	}
	return "unknown"
}

// save writes stats outside the request path. When every writer is busy
// the write is dropped; the next scrape carries the same rows.
func (s *StatsService) save(stats *domain.IslandStats) {
	started := s.persist.TryGo(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		if err := s.store.Save(ctx, stats); err != nil {
			metrics.PersistFailures.Inc()
			s.logger.Warn().Err(err).Str("map_code", stats.MapCode.String()).Msg("failed to store stats")
		}
		return nil
	})
	if !started {
		metrics.PersistFailures.Inc()
		s.logger.Warn().Str("map_code", stats.MapCode.String()).Msg("store writers busy, skipping save")
	}
}

// Flush waits for background writes to finish.
func (s *StatsService) Flush() {
	if err := s.persist.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("background task failed")
	}
}

// History returns the stored series for code, newest first, along with the
// snapshot from the last stored scrape when there is one.
func (s *StatsService) History(ctx context.Context, rawCode string) (*domain.StoredSeries, error) {
	code, err := domain.ParseMapCode(rawCode)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	series, err := s.store.Series(ctx, code, constants.StoredSeriesLimit, constants.StoredMonthsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored series: %w", err)
	}

	island, err := s.store.Island(ctx, code)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load stored snapshot: %w", err)
	default:
		series.Latest = island
	}
	return series, nil
}
