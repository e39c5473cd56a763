package service

import (
	"context"

	"island-tracker/internal/domain"

	"github.com/stretchr/testify/mock"
)

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, code domain.MapCode, opts domain.ExtractOptions) (*domain.Extraction, error) {
	args := m.Called(ctx, code, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Extraction), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, stats *domain.IslandStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *mockStore) Series(ctx context.Context, code domain.MapCode, dailyLimit, monthlyLimit int) (*domain.StoredSeries, error) {
	args := m.Called(ctx, code, dailyLimit, monthlyLimit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoredSeries), args.Error(1)
}

func (m *mockStore) Island(ctx context.Context, code domain.MapCode) (*domain.IslandStats, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IslandStats), args.Error(1)
}

type mockStatsProvider struct {
	mock.Mock
}

func (m *mockStatsProvider) GetStats(ctx context.Context, rawCode string, opts domain.ExtractOptions, refresh bool) (*domain.IslandStats, error) {
	args := m.Called(ctx, rawCode, opts, refresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IslandStats), args.Error(1)
}

type mockForecaster struct {
	mock.Mock
}

func (m *mockForecaster) Forecast(daily []domain.DailyRecord, monthly []domain.MonthlyRecord) *domain.ForecastResult {
	args := m.Called(daily, monthly)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.ForecastResult)
}
