package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"island-tracker/internal/config"
	"island-tracker/internal/constants"
	"island-tracker/internal/domain"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testCode = "1234-5678-9012"

var scrapedAt = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		MaxBrowserSessions:  1,
		ScrapeRatePerMinute: 60000,
		CacheSize:           16,
		CacheTTL:            time.Minute,
	}
}

func newTestStatsService(extractor *mockExtractor, store *mockStore) *StatsService {
	svc := NewStatsService(extractor, store, testConfig(), zerolog.Nop())
	svc.now = func() time.Time { return scrapedAt }
	return svc
}

func sampleExtraction() *domain.Extraction {
	return &domain.Extraction{
		Snapshot: domain.Snapshot{MapCode: testCode, PlayerCount: 4321, Title: "Box Fight Arena", Tags: []string{}},
		Daily:    []domain.DailyRecord{{Date: "Mar 14, 2025", Peak: 1000, Average: 400}},
	}
}

var withDaily = domain.ExtractOptions{IncludeDaily: true}

func TestStatsService_InvalidCodeNeverScrapes(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	for _, raw := range []string{"", "1234-5678", "abcd-efgh-ijkl", "1234-5678-9012 "} {
		_, err := svc.GetStats(context.Background(), raw, withDaily, false)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}

	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatsService_ScrapesCachesAndStores(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	extractor.On("Extract", mock.Anything, domain.MapCode(testCode), withDaily).Return(sampleExtraction(), nil).Once()
	store.On("Save", mock.Anything, mock.MatchedBy(func(s *domain.IslandStats) bool {
		return s.MapCode == testCode && len(s.HistoricalData) == 1
	})).Return(nil).Once()

	stats, err := svc.GetStats(context.Background(), testCode, withDaily, false)
	require.NoError(t, err)
	assert.Equal(t, 4321, stats.PlayerCount)
	assert.Equal(t, scrapedAt, stats.ScrapedAt)
	assert.Len(t, stats.HistoricalData, 1)
	assert.Nil(t, stats.MonthlyData)

	again, err := svc.GetStats(context.Background(), testCode, withDaily, false)
	require.NoError(t, err)
	assert.Same(t, stats, again)

	svc.Flush()
	extractor.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestStatsService_CacheIsPerOptionSet(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	snapshotOnly := domain.ExtractOptions{}
	extractor.On("Extract", mock.Anything, domain.MapCode(testCode), snapshotOnly).Return(&domain.Extraction{Snapshot: sampleExtraction().Snapshot}, nil).Once()
	extractor.On("Extract", mock.Anything, domain.MapCode(testCode), withDaily).Return(sampleExtraction(), nil).Once()
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.GetStats(context.Background(), testCode, snapshotOnly, false)
	require.NoError(t, err)
	_, err = svc.GetStats(context.Background(), testCode, withDaily, false)
	require.NoError(t, err)

	svc.Flush()
	extractor.AssertExpectations(t)
	assert.Equal(t, 2, svc.cache.Len())
}

func TestStatsService_RefreshBypassesCache(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	extractor.On("Extract", mock.Anything, domain.MapCode(testCode), withDaily).Return(sampleExtraction(), nil).Twice()
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.GetStats(context.Background(), testCode, withDaily, false)
	require.NoError(t, err)
	_, err = svc.GetStats(context.Background(), testCode, withDaily, true)
	require.NoError(t, err)

	svc.Flush()
	extractor.AssertNumberOfCalls(t, "Extract", 2)
}

func TestStatsService_ExtractErrorsPassThrough(t *testing.T) {
	for _, sentinel := range []error{domain.ErrNotFound, domain.ErrStatsNotFound, domain.ErrTimeout, domain.ErrNetworkFailure, domain.ErrUnknown} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			extractor := new(mockExtractor)
			store := new(mockStore)
			svc := newTestStatsService(extractor, store)

			extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, fmt.Errorf("%w: boom", sentinel)).Once()

			_, err := svc.GetStats(context.Background(), testCode, withDaily, false)
			assert.ErrorIs(t, err, sentinel)

			svc.Flush()
			store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			assert.Equal(t, 0, svc.cache.Len())
		})
	}
}

func TestStatsService_StoreFailureDoesNotFailRequest(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(sampleExtraction(), nil)
	store.On("Save", mock.Anything, mock.Anything).Return(fmt.Errorf("disk full"))

	_, err := svc.GetStats(context.Background(), testCode, withDaily, false)
	assert.NoError(t, err)

	svc.Flush()
	store.AssertExpectations(t)
}

func TestStatsService_BreakerOpensOnSourceFailures(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: net::ERR_CONNECTION_RESET", domain.ErrNetworkFailure))

	for range constants.BreakerMinRequests {
		_, err := svc.GetStats(context.Background(), testCode, withDaily, false)
		require.ErrorIs(t, err, domain.ErrNetworkFailure)
	}

	_, err := svc.GetStats(context.Background(), testCode, withDaily, false)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	extractor.AssertNumberOfCalls(t, "Extract", constants.BreakerMinRequests)
}

func TestStatsService_MissingIslandsDoNotTripBreaker(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: title 404", domain.ErrNotFound))

	calls := constants.BreakerMinRequests * 2
	for range calls {
		_, err := svc.GetStats(context.Background(), testCode, withDaily, false)
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	extractor.AssertNumberOfCalls(t, "Extract", calls)
}

func TestStatsService_SessionsAreBounded(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	started := make(chan struct{})
	release := make(chan struct{})
	extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(sampleExtraction(), nil).Once()
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.GetStats(context.Background(), testCode, withDaily, false)
		assert.NoError(t, err)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.GetStats(ctx, "9999-9999-9999", withDaily, false)
	assert.ErrorIs(t, err, domain.ErrTimeout)

	close(release)
	wg.Wait()
	svc.Flush()
	extractor.AssertNumberOfCalls(t, "Extract", 1)
}

func TestStatsService_History(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	series := &domain.StoredSeries{MapCode: testCode, Daily: []domain.DailyRecord{{Date: "Mar 14, 2025"}}}
	island := &domain.IslandStats{Snapshot: domain.Snapshot{MapCode: testCode, PlayerCount: 4321}, ScrapedAt: scrapedAt}
	store.On("Series", mock.Anything, domain.MapCode(testCode), constants.StoredSeriesLimit, constants.StoredMonthsLimit).
		Return(series, nil).Once()
	store.On("Island", mock.Anything, domain.MapCode(testCode)).Return(island, nil).Once()

	got, err := svc.History(context.Background(), testCode)
	require.NoError(t, err)
	assert.Equal(t, series.Daily, got.Daily)
	assert.Same(t, island, got.Latest)

	_, err = svc.History(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	store.AssertExpectations(t)
}

func TestStatsService_HistoryWithoutStoredSnapshot(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	store.On("Series", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.StoredSeries{MapCode: testCode}, nil).Once()
	store.On("Island", mock.Anything, domain.MapCode(testCode)).
		Return(nil, fmt.Errorf("%w: no stored stats", domain.ErrNotFound)).Once()

	got, err := svc.History(context.Background(), testCode)
	require.NoError(t, err)
	assert.Nil(t, got.Latest)

	store.ExpectedCalls = nil
	store.On("Series", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.StoredSeries{MapCode: testCode}, nil).Once()
	store.On("Island", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("database is locked")).Once()

	_, err = svc.History(context.Background(), testCode)
	assert.ErrorContains(t, err, "database is locked")
}

func TestStatsService_CancelledCallersDoNotTripBreaker(t *testing.T) {
	extractor := new(mockExtractor)
	store := new(mockStore)
	svc := newTestStatsService(extractor, store)

	extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, fmt.Errorf("%w: %w", domain.ErrTimeout, context.Canceled)).
		Times(constants.BreakerMinRequests)
	extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(sampleExtraction(), nil).Once()
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	for range constants.BreakerMinRequests {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		time.AfterFunc(10*time.Millisecond, cancel)
		_, err := svc.GetStats(ctx, testCode, withDaily, false)
		require.ErrorIs(t, err, domain.ErrTimeout)
		cancel()
	}

	stats, err := svc.GetStats(context.Background(), testCode, withDaily, false)
	require.NoError(t, err)
	assert.Equal(t, 4321, stats.PlayerCount)

	svc.Flush()
	extractor.AssertNumberOfCalls(t, "Extract", constants.BreakerMinRequests+1)
	assert.Equal(t, gobreaker.StateClosed, svc.breaker.State())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "rejected", outcome(gobreaker.ErrOpenState))
	assert.Equal(t, "cancelled", outcome(fmt.Errorf("%w: %w", errCallerGone, context.Canceled)))
	assert.Equal(t, "not_found", outcome(fmt.Errorf("%w: x", domain.ErrNotFound)))
	assert.Equal(t, "timeout", outcome(fmt.Errorf("%w: x", domain.ErrTimeout)))
	assert.Equal(t, "unknown", outcome(fmt.Errorf("boom")))
}
