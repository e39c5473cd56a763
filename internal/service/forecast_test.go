package service

import (
	"context"
	"fmt"
	"testing"

	"island-tracker/internal/constants"
	"island-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var bothSeries = domain.ExtractOptions{IncludeDaily: true, IncludeMonthly: true}

func newTestForecastService() (*ForecastService, *mockStatsProvider, *mockStore, *mockForecaster) {
	stats := new(mockStatsProvider)
	store := new(mockStore)
	forecaster := new(mockForecaster)
	return NewForecastService(stats, store, forecaster, zerolog.Nop()), stats, store, forecaster
}

func liveStats(days int) *domain.IslandStats {
	stats := &domain.IslandStats{Snapshot: domain.Snapshot{MapCode: testCode}}
	for i := range days {
		stats.HistoricalData = append(stats.HistoricalData, domain.DailyRecord{Date: fmt.Sprintf("Mar %d, 2025", i+1), Peak: 100})
	}
	stats.MonthlyData = []domain.MonthlyRecord{{Month: "February 2025", Peak: 100}}
	return stats
}

func TestForecastService_Live(t *testing.T) {
	svc, stats, store, forecaster := newTestForecastService()

	live := liveStats(10)
	result := &domain.ForecastResult{}
	stats.On("GetStats", mock.Anything, testCode, bothSeries, true).Return(live, nil).Once()
	forecaster.On("Forecast", live.HistoricalData, live.MonthlyData).Return(result).Once()

	resp, err := svc.Forecast(context.Background(), testCode, true)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, resp.Source)
	assert.Equal(t, domain.MapCode(testCode), resp.MapCode)
	assert.Same(t, result, resp.Forecast)

	store.AssertNotCalled(t, "Series", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	forecaster.AssertExpectations(t)
}

func TestForecastService_FallsBackToStoredSeries(t *testing.T) {
	svc, stats, store, forecaster := newTestForecastService()

	stored := &domain.StoredSeries{
		MapCode: testCode,
		Daily:   liveStats(8).HistoricalData,
		Monthly: []domain.MonthlyRecord{},
	}
	result := &domain.ForecastResult{}
	stats.On("GetStats", mock.Anything, testCode, bothSeries, false).
		Return(nil, fmt.Errorf("%w: navigation failed", domain.ErrTimeout)).Once()
	store.On("Series", mock.Anything, domain.MapCode(testCode), constants.StoredSeriesLimit, constants.StoredMonthsLimit).
		Return(stored, nil).Once()
	forecaster.On("Forecast", stored.Daily, stored.Monthly).Return(result).Once()

	resp, err := svc.Forecast(context.Background(), testCode, false)
	require.NoError(t, err)
	assert.Equal(t, SourceStored, resp.Source)
	assert.Same(t, result, resp.Forecast)
}

func TestForecastService_LiveWithoutDailyUsesStore(t *testing.T) {
	svc, stats, store, forecaster := newTestForecastService()

	live := liveStats(0)
	stored := &domain.StoredSeries{MapCode: testCode, Daily: liveStats(3).HistoricalData}
	stats.On("GetStats", mock.Anything, testCode, bothSeries, false).Return(live, nil).Once()
	store.On("Series", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(stored, nil).Once()
	forecaster.On("Forecast", stored.Daily, stored.Monthly).Return(nil).Once()

	resp, err := svc.Forecast(context.Background(), testCode, false)
	require.NoError(t, err)
	assert.Equal(t, SourceStored, resp.Source)
	assert.Nil(t, resp.Forecast)
}

func TestForecastService_NothingAnywhere(t *testing.T) {
	t.Run("scrape error is returned", func(t *testing.T) {
		svc, stats, store, forecaster := newTestForecastService()

		stats.On("GetStats", mock.Anything, testCode, bothSeries, false).
			Return(nil, fmt.Errorf("%w: title 404", domain.ErrNotFound)).Once()
		store.On("Series", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&domain.StoredSeries{MapCode: testCode}, nil).Once()

		_, err := svc.Forecast(context.Background(), testCode, false)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		forecaster.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)
	})

	t.Run("store failure keeps scrape error", func(t *testing.T) {
		svc, stats, store, _ := newTestForecastService()

		stats.On("GetStats", mock.Anything, testCode, bothSeries, false).
			Return(nil, fmt.Errorf("%w: reset", domain.ErrNetworkFailure)).Once()
		store.On("Series", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("database is locked")).Once()

		_, err := svc.Forecast(context.Background(), testCode, false)
		assert.ErrorIs(t, err, domain.ErrNetworkFailure)
	})

	t.Run("successful scrape without history yields empty forecast", func(t *testing.T) {
		svc, stats, store, forecaster := newTestForecastService()

		live := liveStats(0)
		stats.On("GetStats", mock.Anything, testCode, bothSeries, false).Return(live, nil).Once()
		store.On("Series", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&domain.StoredSeries{MapCode: testCode}, nil).Once()
		forecaster.On("Forecast", mock.Anything, mock.Anything).Return(nil).Once()

		resp, err := svc.Forecast(context.Background(), testCode, false)
		require.NoError(t, err)
		assert.Equal(t, SourceLive, resp.Source)
		assert.Nil(t, resp.Forecast)
	})
}

func TestForecastService_InvalidCode(t *testing.T) {
	svc, stats, _, _ := newTestForecastService()

	_, err := svc.Forecast(context.Background(), "12-34", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	stats.AssertNotCalled(t, "GetStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
