package interfaces

import (
	"context"

	"github.com/Fazmin/syncengine/internal/models"
)

// Scraper fetches pages for one web source and applies extraction rules.
// Implementations enforce the source's rate limit and concurrency cap
// across the instance.
type Scraper interface {
	// FetchHTML retrieves the page body for a URL using the source's
	// configured mode (http, browser, or hybrid).
	FetchHTML(ctx context.Context, url string) (string, error)

	// Extract applies the active extraction rules to an HTML document and
	// returns one row per repeating match (or a single row for the whole
	// document).
	Extract(html string, rules []*models.ExtractionRule) ([]Row, error)

	// DetectPagination fetches a URL and probes for a pagination pattern.
	// Returns nil when none is found.
	DetectPagination(ctx context.Context, url string) (*models.PaginationConfig, error)

	// GeneratePaginatedURLs expands a base URL through a pagination config,
	// capped at cap pages.
	GeneratePaginatedURLs(base string, cfg *models.PaginationConfig, cap int) ([]string, error)

	// NextPageURL resolves the next_button link on a fetched page.
	// Returns "" when the chain ends.
	NextPageURL(html string, pageURL string, cfg *models.PaginationConfig) (string, error)

	// AnalyzeStructure fetches a URL and detects repeating elements,
	// fields, forms, links and pagination.
	AnalyzeStructure(ctx context.Context, url string) (*models.WebsiteStructure, error)

	// Close releases the shared browser and any in-flight waits.
	Close() error
}

// ScraperFactory builds a scraper for a web source. Injected so tests can
// stub fetching.
type ScraperFactory func(ws *models.WebSource) (Scraper, error)

// StructuredExtractor runs LLM structured-output extraction against pages
type StructuredExtractor interface {
	// ExtractStructured sends cleaned page content with the capture
	// config's prompt and schema and parses the items array into rows.
	ExtractStructured(ctx context.Context, html string, cfg *models.LLMCaptureConfig, url string) ([]Row, error)
}
