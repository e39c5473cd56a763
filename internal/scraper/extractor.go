package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"island-tracker/internal/config"
	"island-tracker/internal/constants"
	"island-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// PageExtractor is the only place that knows the source page's layout.
type PageExtractor interface {
	Extract(ctx context.Context, code domain.MapCode, opts domain.ExtractOptions) (*domain.Extraction, error)
}

type Settings struct {
	BaseURL             string
	NavigationTimeout   time.Duration
	ElementTimeout      time.Duration
	RangeControlTimeout time.Duration
	TitleTimeout        time.Duration
	DailySettle         time.Duration
	MonthlySettle       time.Duration
	TableSettle         time.Duration
}

func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		BaseURL:             strings.TrimRight(cfg.SourceBaseURL, "/"),
		NavigationTimeout:   cfg.NavigationTimeout,
		ElementTimeout:      cfg.ElementTimeout,
		RangeControlTimeout: constants.RangeControlTimeout,
		TitleTimeout:        constants.TitleTimeout,
		DailySettle:         cfg.Settle(constants.DailyRangeSettle),
		MonthlySettle:       cfg.Settle(constants.MonthlyRangeSettle),
		TableSettle:         cfg.Settle(constants.TableSettle),
	}
}

type rangeView struct {
	name   string
	key    string
	settle func(Settings) time.Duration
}

var (
	dailyView   = rangeView{name: "daily", key: "1m", settle: func(s Settings) time.Duration { return s.DailySettle }}
	monthlyView = rangeView{name: "monthly", key: "1y", settle: func(s Settings) time.Duration { return s.MonthlySettle }}
)

type Extractor struct {
	browser  Browser
	settings Settings
	logger   zerolog.Logger
}

func NewExtractor(browser Browser, settings Settings, logger zerolog.Logger) *Extractor {
	return &Extractor{
		browser:  browser,
		settings: settings,
		logger:   logger.With().Str("component", "extractor").Logger(),
	}
}

func NewChromeExtractor(browser *ChromeBrowser, cfg *config.Config, logger zerolog.Logger) *Extractor {
	return NewExtractor(browser, SettingsFrom(cfg), logger)
}

func (e *Extractor) IslandURL(code domain.MapCode) string {
	return fmt.Sprintf("%s/island?code=%s", e.settings.BaseURL, url.QueryEscape(code.String()))
}

func (e *Extractor) Extract(ctx context.Context, code domain.MapCode, opts domain.ExtractOptions) (*domain.Extraction, error) {
	if _, err := domain.ParseMapCode(code.String()); err != nil {
		return nil, err
	}

	log := e.logger.With().Str("map_code", code.String()).Logger()

	pg, err := e.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnknown, err)
	}
	defer func() {
		if err := pg.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close browser session")
		}
	}()

	target := e.IslandURL(code)
	log.Info().Str("url", target).Msg("scraping island page")

	navCtx, cancel := context.WithTimeout(ctx, e.settings.NavigationTimeout)
	err = pg.Navigate(navCtx, target)
	cancel()
	if err != nil {
		return nil, classifyNavigation(err)
	}

	snapshot, err := e.snapshot(ctx, pg, code, log)
	if err != nil {
		return nil, err
	}

	out := &domain.Extraction{Snapshot: *snapshot}

	if opts.IncludeDaily {
		rows, err := e.rangeTable(ctx, pg, dailyView)
		if err != nil {
			log.Warn().Err(err).Msg("daily history unavailable, continuing without it")
		} else if daily := NormalizeDaily(rows); len(daily) > 0 {
			out.Daily = daily
			log.Info().Int("rows", len(rows)).Int("days", len(daily)).Msg("scraped daily history")
		} else {
			log.Warn().Int("rows", len(rows)).Msg("no daily history rows in table")
		}
	}

	if opts.IncludeMonthly {
		rows, err := e.rangeTable(ctx, pg, monthlyView)
		if err != nil {
			log.Warn().Err(err).Msg("monthly history unavailable, continuing without it")
		} else if monthly := NormalizeMonthly(rows); len(monthly) > 0 {
			out.Monthly = monthly
			log.Info().Int("rows", len(rows)).Int("months", len(monthly)).Msg("scraped monthly history")
		} else {
			log.Warn().Int("rows", len(rows)).Msg("no monthly history rows in table")
		}
	}

	return out, nil
}

func (e *Extractor) snapshot(ctx context.Context, pg Page, code domain.MapCode, log zerolog.Logger) (*domain.Snapshot, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.settings.ElementTimeout)
	err := pg.WaitReady(waitCtx, selStatsContainer)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err())
		}
		return nil, e.missingStats(ctx, pg, err, log)
	}

	html, err := pg.HTML(ctx)
	if err != nil {
		return nil, classifyPageError(fmt.Errorf("failed to read page: %w", err))
	}
	return ParseSnapshot(html, code)
}

// missingStats tells a page the source does not know apart from a known
// island that has no current stats.
func (e *Extractor) missingStats(ctx context.Context, pg Page, cause error, log zerolog.Logger) error {
	titleCtx, cancel := context.WithTimeout(ctx, e.settings.TitleTimeout)
	defer cancel()

	title, err := pg.Title(titleCtx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read page title")
	}
	log.Info().Str("title", title).Err(cause).Msg("stats container did not appear")

	if strings.Contains(title, "404") || strings.Contains(title, "Not Found") {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, cause)
	}
	return fmt.Errorf("%w: %w", domain.ErrStatsNotFound, cause)
}

func (e *Extractor) rangeTable(ctx context.Context, pg Page, view rangeView) ([]RawRow, error) {
	ctrlCtx, cancel := context.WithTimeout(ctx, e.settings.RangeControlTimeout)
	defer cancel()

	if err := pg.WaitReady(ctrlCtx, selRangeControl); err != nil {
		return nil, fmt.Errorf("range controls not found: %w", err)
	}
	control := fmt.Sprintf(`%s[data-range=%q]`, selRangeControl, view.key)
	if err := pg.Click(ctrlCtx, control); err != nil {
		return nil, fmt.Errorf("failed to activate %s control: %w", view.key, err)
	}

	if err := sleep(ctx, view.settle(e.settings)); err != nil {
		return nil, err
	}

	tableCtx, cancelTable := context.WithTimeout(ctx, e.settings.ElementTimeout)
	defer cancelTable()
	if err := pg.WaitReady(tableCtx, selStatsTableRows); err != nil {
		return nil, fmt.Errorf("%s table did not populate: %w", view.name, err)
	}

	if err := sleep(ctx, e.settings.TableSettle); err != nil {
		return nil, err
	}

	rows, err := pg.TableRows(ctx, selStatsTableRows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s table: %w", view.name, err)
	}
	return rows, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classifyNavigation(err error) error {
	return classifyPageError(fmt.Errorf("navigation failed: %w", err))
}

func classifyPageError(err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded), strings.Contains(strings.ToLower(msg), "timeout"):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case strings.Contains(msg, "net::"), strings.Contains(msg, "ERR_"):
		return fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrUnknown, err)
}
