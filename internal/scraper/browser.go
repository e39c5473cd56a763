package scraper

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"island-tracker/internal/api"
	"island-tracker/internal/config"
	"island-tracker/internal/constants"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Page is one browser tab owned by a single extraction.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	TableRows(ctx context.Context, selector string) ([]RawRow, error)
	Close() error
}

// Browser hands out isolated sessions. Each Page must be closed by its owner.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
}

// BrowserConfig is fixed at startup and shared read-only by every session.
type BrowserConfig struct {
	UserAgent      string
	AcceptLanguage string
	Width          int64
	Height         int64
}

func BrowserConfigFrom(cfg *config.Config) BrowserConfig {
	return BrowserConfig{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		Width:          1920,
		Height:         1080,
	}
}

const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

type ChromeBrowser struct {
	cfg      BrowserConfig
	devtools *api.DevToolsClient
	logger   zerolog.Logger
}

func NewChromeBrowser(cfg *config.Config, devtools *api.DevToolsClient, logger zerolog.Logger) *ChromeBrowser {
	return &ChromeBrowser{
		cfg:      BrowserConfigFrom(cfg),
		devtools: devtools,
		logger:   logger.With().Str("component", "browser").Logger(),
	}
}

func (b *ChromeBrowser) execOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-features", "VizDisplayCompositor"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(b.cfg.UserAgent),
		chromedp.WindowSize(int(b.cfg.Width), int(b.cfg.Height)),
	)
}

func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	// The session outlives individual waits; Close ends it.
	base := context.WithoutCancel(ctx)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if b.devtools.Enabled() {
		wsCtx, cancel := context.WithTimeout(ctx, constants.DevToolsTimeout)
		wsURL, err := b.devtools.WebSocketURL(wsCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve remote browser: %w", err)
		}
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, wsURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, b.execOptions()...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			b.logger.Debug().Msgf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			b.logger.Warn().Msgf(format, args...)
		}),
	)

	p := &chromePage{ctx: tabCtx, cancel: tabCancel, allocCancel: allocCancel}

	// The first Run allocates the browser and must not carry a timeout,
	// or the deadline would tear the whole browser down.
	if err := chromedp.Run(tabCtx); err != nil {
		if cerr := p.Close(); cerr != nil {
			b.logger.Warn().Err(cerr).Msg("failed to close browser after launch error")
		}
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	setup := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": b.cfg.AcceptLanguage}),
		emulation.SetUserAgentOverride(b.cfg.UserAgent).WithAcceptLanguage(b.cfg.AcceptLanguage),
		chromedp.EmulateViewport(b.cfg.Width, b.cfg.Height),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx)
			return err
		}),
		page.SetLifecycleEventsEnabled(true),
	}
	runCtx, cancel := p.scope(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, setup); err != nil {
		if cerr := p.Close(); cerr != nil {
			b.logger.Warn().Err(cerr).Msg("failed to close browser after setup error")
		}
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	return p, nil
}

type chromePage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

// scope derives a context bound to this tab that also honours the caller's
// deadline and cancellation.
func (p *chromePage) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		prev := cancel
		cancel = func() { cancelDeadline(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() { stop(); cancel() }
}

// Navigate returns once the new document reports networkAlmostIdle, the
// lifecycle state equivalent to "at most two open connections".
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.scope(ctx)
	defer cancel()

	listenCtx, stopListening := context.WithCancel(runCtx)
	defer stopListening()

	var committed atomic.Bool
	idle := make(chan struct{})
	var idleOnce sync.Once
	chromedp.ListenTarget(listenCtx, func(ev any) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		switch e.Name {
		case "init":
			committed.Store(true)
		case "networkAlmostIdle", "networkIdle":
			if committed.Load() {
				idleOnce.Do(func() { close(idle) })
			}
		}
	})

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return err
	}

	select {
	case <-idle:
		return nil
	case <-runCtx.Done():
		return runCtx.Err()
	}
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	runCtx, cancel := p.scope(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	runCtx, cancel := p.scope(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	runCtx, cancel := p.scope(ctx)
	defer cancel()
	var title string
	err := chromedp.Run(runCtx, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := p.scope(ctx)
	defer cancel()
	var html string
	err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Bold styling comes from stylesheets, so it can only be read from the live
// DOM via getComputedStyle.
const tableRowsScript = `(() => Array.from(document.querySelectorAll(%s)).map(row => ({
	classes: Array.from(row.classList),
	fontWeight: window.getComputedStyle(row).fontWeight,
	cells: Array.from(row.querySelectorAll('td')).map(td => ({
		text: (td.textContent || '').trim(),
		sort: td.getAttribute('data-sort') || '',
		hasSort: td.hasAttribute('data-sort'),
	})),
})))()`

func (p *chromePage) TableRows(ctx context.Context, selector string) ([]RawRow, error) {
	runCtx, cancel := p.scope(ctx)
	defer cancel()
	var rows []RawRow
	err := chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf(tableRowsScript, strconv.Quote(selector)), &rows))
	return rows, err
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = chromedp.Cancel(p.ctx)
		p.cancel()
		p.allocCancel()
	})
	return p.closeErr
}
