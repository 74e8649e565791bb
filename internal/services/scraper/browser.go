package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/models"
)

// browserFetcher owns one headless browser shared across all fetches of a
// scraper instance. Each fetch gets its own tab, closed when the fetch
// returns. The browser starts on first use and lives until close.
type browserFetcher struct {
	config   common.ScraperConfig
	creds    *models.AuthCredentials
	authType models.AuthType
	logger   arbor.ILogger

	mu              sync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	started         bool
	closed          bool
}

func newBrowserFetcher(config common.ScraperConfig, creds *models.AuthCredentials, authType models.AuthType, logger arbor.ILogger) *browserFetcher {
	return &browserFetcher{
		config:   config,
		creds:    creds,
		authType: authType,
		logger:   logger,
	}
}

// start launches the browser. Idempotent; callers hold no lock.
func (b *browserFetcher) start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("browser already closed")
	}
	if b.started {
		return nil
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(b.config.UserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	}
	if b.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if b.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, args ...interface{}) {
			b.logger.Debug().Msgf("chromedp: "+s, args...)
		}),
	)

	startCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.allocatorCancel = allocatorCancel
	b.started = true

	b.logger.Debug().Bool("headless", b.config.Headless).Msg("Headless browser started")
	return nil
}

// fetch opens a tab, navigates, waits for the page to settle, and returns
// the rendered document HTML.
func (b *browserFetcher) fetch(ctx context.Context, pageURL string) (string, error) {
	if err := b.start(); err != nil {
		return "", &models.ExtractionError{URL: pageURL, Err: err}
	}

	b.mu.Lock()
	browserCtx := b.browserCtx
	b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	timeout := b.config.RequestTimeout + b.config.JavaScriptWaitTime
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, timeout)
	defer timeoutCancel()

	// Propagate the job's cancellation into the tab
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	actions := []chromedp.Action{network.Enable()}
	if b.authType == models.AuthTypeCookie && len(b.creds.Cookies) > 0 {
		actions = append(actions, b.setCookies(pageURL))
	}
	if b.authType == models.AuthTypeHeader && len(b.creds.Headers) > 0 {
		headers := make(network.Headers, len(b.creds.Headers))
		for name, value := range b.creds.Headers {
			headers[name] = value
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.config.JavaScriptWaitTime),
		chromedp.OuterHTML("html", &html),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &models.ExtractionError{URL: pageURL, Err: err}
	}

	b.logger.Debug().
		Str("url", pageURL).
		Int("content_size", len(html)).
		Msg("Fetched page via browser")

	return html, nil
}

// setCookies installs the source's cookies on the tab before navigation
func (b *browserFetcher) setCookies(pageURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for name, value := range b.creds.Cookies {
			if err := network.SetCookie(name, value).WithURL(pageURL).Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", name, err)
			}
		}
		return nil
	})
}

// close shuts the browser down. Safe to call without a prior start.
func (b *browserFetcher) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocatorCancel != nil {
		b.allocatorCancel()
	}
	return nil
}
