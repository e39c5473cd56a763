package fx

import (
	"island-tracker/internal/api"
	"island-tracker/internal/config"
	"island-tracker/internal/database"
	"island-tracker/internal/forecast"
	"island-tracker/internal/logger"
	"island-tracker/internal/repository"
	"island-tracker/internal/scraper"
	"island-tracker/internal/server"
	"island-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideStatsStore(repo *repository.StatsRepository) service.StatsStore {
	return repo
}

func ProvidePinger(repo *repository.StatsRepository) server.Pinger {
	return repo
}

func ProvideExtractor(browser *scraper.ChromeBrowser, cfg *config.Config, log zerolog.Logger) scraper.PageExtractor {
	return scraper.NewChromeExtractor(browser, cfg, log)
}

func ProvideForecaster() service.Forecaster {
	return forecast.NewDefault()
}

func ProvideStatsProvider(svc *service.StatsService) service.StatsProvider {
	return svc
}

func ProvideStatsHandlerService(svc *service.StatsService) server.StatsService {
	return svc
}

func ProvideForecastHandlerService(svc *service.ForecastService) server.ForecastService {
	return svc
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// store
	fx.Provide(repository.NewStatsRepository),
	fx.Provide(ProvideStatsStore),
	fx.Provide(ProvidePinger),
	// browser
	fx.Provide(api.NewDevToolsClient),
	fx.Provide(scraper.NewChromeBrowser),
	fx.Provide(ProvideExtractor),
	// svc
	fx.Provide(ProvideForecaster),
	fx.Provide(service.NewStatsService),
	fx.Provide(ProvideStatsProvider),
	fx.Provide(service.NewForecastService),
	// server
	fx.Provide(ProvideStatsHandlerService),
	fx.Provide(ProvideForecastHandlerService),
	fx.Provide(server.NewIslandServer),
	fx.Provide(server.NewRouter),
)
