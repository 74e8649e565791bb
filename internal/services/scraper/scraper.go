// -----------------------------------------------------------------------
// Scraper Service - Page fetching with rate control and mode selection
// -----------------------------------------------------------------------

package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// clientRenderedMarkers are substrings that indicate a page whose content is
// built client-side. Hybrid mode retries such pages in the browser even when
// the HTTP body is large enough.
var clientRenderedMarkers = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	"window.__NUXT__",
	"window.__NEXT_DATA__",
	"ng-app",
}

// Service fetches pages for one web source. It enforces the source's
// request delay and concurrency cap across all fetches on the instance,
// regardless of mode.
type Service struct {
	source *models.WebSource
	config common.ScraperConfig
	logger arbor.ILogger
	creds  *models.AuthCredentials

	client  *http.Client
	limiter *rate.Limiter
	sem     chan struct{}

	browser *browserFetcher
}

// New builds a scraper for a web source. The browser is started lazily on
// the first fetch that needs it.
func New(source *models.WebSource, config common.ScraperConfig, logger arbor.ILogger) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("web source is nil")
	}

	creds, err := source.GetAuthCredentials()
	if err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	timeout := config.RequestTimeout
	if source.TimeoutSeconds > 0 {
		timeout = time.Duration(source.TimeoutSeconds) * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if source.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(source.RequestDelay)*time.Millisecond), 1)
	}

	maxConcurrent := source.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	s := &Service{
		source:  source,
		config:  config,
		logger:  logger,
		creds:   creds,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		sem:     make(chan struct{}, maxConcurrent),
	}
	s.browser = newBrowserFetcher(config, creds, source.AuthType, logger)
	return s, nil
}

// FetchHTML retrieves a page using the source's configured mode. Every
// fetch waits for a rate-limit token and a concurrency slot first; both
// waits abort on context cancellation.
func (s *Service) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	switch s.source.ScraperType {
	case models.ScraperTypeBrowser:
		return s.browser.fetch(ctx, pageURL)
	case models.ScraperTypeHybrid:
		return s.fetchHybrid(ctx, pageURL)
	default:
		return s.fetchHTTP(ctx, pageURL)
	}
}

// fetchHTTP performs a plain HTTP GET with realistic headers and auth
func (s *Service) fetchHTTP(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &models.ExtractionError{URL: pageURL, Err: err}
	}

	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	s.applyAuth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &models.ExtractionError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &models.ExtractionError{URL: pageURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.ExtractionError{URL: pageURL, Err: err}
	}

	s.logger.Debug().
		Str("url", pageURL).
		Int("content_size", len(body)).
		Msg("Fetched page via HTTP")

	return string(body), nil
}

// fetchHybrid tries HTTP first and falls back to the browser when the body
// looks client-rendered or carries too little visible text.
func (s *Service) fetchHybrid(ctx context.Context, pageURL string) (string, error) {
	html, err := s.fetchHTTP(ctx, pageURL)
	if err == nil && !s.needsBrowser(html) {
		return html, nil
	}

	if err != nil {
		s.logger.Debug().Err(err).Str("url", pageURL).Msg("HTTP fetch failed, retrying with browser")
	} else {
		s.logger.Debug().Str("url", pageURL).Msg("Thin HTTP response, retrying with browser")
	}
	return s.browser.fetch(ctx, pageURL)
}

// needsBrowser reports whether an HTTP body warrants a browser retry
func (s *Service) needsBrowser(html string) bool {
	for _, marker := range clientRenderedMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}

	minText := s.config.HybridMinTextSize
	if minText <= 0 {
		minText = 512
	}
	return len(visibleText(html)) < minText
}

// applyAuth sets request auth per the source's auth type. Cookie auth is
// serialized onto a Cookie header in HTTP mode.
func (s *Service) applyAuth(req *http.Request) {
	switch s.source.AuthType {
	case models.AuthTypeBasic:
		req.SetBasicAuth(s.creds.Username, s.creds.Password)
	case models.AuthTypeHeader:
		for name, value := range s.creds.Headers {
			req.Header.Set(name, value)
		}
	case models.AuthTypeCookie:
		var parts []string
		for name, value := range s.creds.Cookies {
			parts = append(parts, name+"="+value)
		}
		if len(parts) > 0 {
			req.Header.Set("Cookie", strings.Join(parts, "; "))
		}
	}
}

// visibleText strips script and style content and returns the page's text
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Text())
}

// Close shuts down the shared browser
func (s *Service) Close() error {
	return s.browser.close()
}

// Factory builds scrapers from the process-wide scraper defaults. Satisfies
// interfaces.ScraperFactory.
func Factory(config common.ScraperConfig, logger arbor.ILogger) interfaces.ScraperFactory {
	return func(source *models.WebSource) (interfaces.Scraper, error) {
		return New(source, config, logger)
	}
}
