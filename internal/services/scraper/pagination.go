package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Fazmin/syncengine/internal/models"
)

// pageParamNames are the query parameter names recognised as pagination
var pageParamNames = map[string]bool{
	"page":   true,
	"p":      true,
	"offset": true,
	"start":  true,
}

var (
	nextTextPattern = regexp.MustCompile(`(?i)^\s*(next|→|»|next\s*(page|›|>))\s*$`)

	pathPagePattern  = regexp.MustCompile(`/page/(\d+)`)
	pathPPattern     = regexp.MustCompile(`/p/(\d+)`)
	pathTrailPattern = regexp.MustCompile(`/(\d+)/?$`)
)

// DetectPagination fetches a URL and probes the document for a pagination
// pattern. Query parameter links are checked first, then next buttons, then
// numeric path segments; the first pattern found wins. Returns nil when no
// pattern matches.
func (s *Service) DetectPagination(ctx context.Context, pageURL string) (*models.PaginationConfig, error) {
	htmlContent, err := s.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return detectPagination(htmlContent)
}

func detectPagination(htmlContent string) (*models.PaginationConfig, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if cfg := detectQueryParam(doc); cfg != nil {
		return cfg, nil
	}
	if cfg := detectNextButton(doc); cfg != nil {
		return cfg, nil
	}
	if cfg := detectPathSegment(doc); cfg != nil {
		return cfg, nil
	}
	return nil, nil
}

func detectQueryParam(doc *goquery.Document) *models.PaginationConfig {
	var found *models.PaginationConfig
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		for key := range u.Query() {
			if pageParamNames[strings.ToLower(key)] {
				found = &models.PaginationConfig{
					Type:      models.PaginationTypeQueryParam,
					ParamName: key,
					MaxPages:  models.DefaultMaxPages,
				}
				return false
			}
		}
		return true
	})
	return found
}

func detectNextButton(doc *goquery.Document) *models.PaginationConfig {
	var selector string
	doc.Find("a, button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if rel, _ := sel.Attr("rel"); rel == "next" {
			selector = `a[rel="next"]`
			return false
		}
		if class, _ := sel.Attr("class"); strings.Contains(strings.ToLower(class), "next") {
			selector = nextClassSelector(sel, class)
			return false
		}
		if nextTextPattern.MatchString(sel.Text()) {
			// Text matches cannot be expressed as a CSS selector; the
			// walker re-scans by text when the selector is empty.
			selector = ""
			return false
		}
		return true
	})

	if selector == "" && !hasNextByText(doc) {
		return nil
	}
	return &models.PaginationConfig{
		Type:     models.PaginationTypeNextButton,
		Selector: selector,
		MaxPages: models.DefaultMaxPages,
	}
}

func nextClassSelector(sel *goquery.Selection, class string) string {
	tag := goquery.NodeName(sel)
	for _, token := range strings.Fields(class) {
		if strings.Contains(strings.ToLower(token), "next") {
			return tag + "." + token
		}
	}
	return tag
}

func hasNextByText(doc *goquery.Document) bool {
	found := false
	doc.Find("a, button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if nextTextPattern.MatchString(sel.Text()) {
			found = true
			return false
		}
		return true
	})
	return found
}

func detectPathSegment(doc *goquery.Document) *models.PaginationConfig {
	var pattern string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		switch {
		case pathPagePattern.MatchString(u.Path):
			pattern = "/page/N"
		case pathPPattern.MatchString(u.Path):
			pattern = "/p/N"
		case pathTrailPattern.MatchString(u.Path):
			pattern = "/N"
		default:
			return true
		}
		return false
	})

	if pattern == "" {
		return nil
	}
	return &models.PaginationConfig{
		Type:       models.PaginationTypePath,
		URLPattern: pattern,
		MaxPages:   models.DefaultMaxPages,
	}
}

// GeneratePaginatedURLs expands a base URL through a pagination config.
// The sequence has min(cap, maxPages) entries for query_param and path
// configs; next_button returns only the base URL, since that chain is
// walked dynamically page by page.
func (s *Service) GeneratePaginatedURLs(base string, cfg *models.PaginationConfig, cap int) ([]string, error) {
	if cfg == nil || cfg.Type == models.PaginationTypeNone {
		return []string{base}, nil
	}

	count := cfg.EffectiveMaxPages()
	if cap > 0 && cap < count {
		count = cap
	}
	start := cfg.EffectiveStartPage()

	switch cfg.Type {
	case models.PaginationTypeQueryParam:
		return expandQueryParam(base, cfg.ParamName, start, count)
	case models.PaginationTypePath:
		return expandPathSegment(base, cfg.URLPattern, start, count)
	case models.PaginationTypeNextButton:
		return []string{base}, nil
	default:
		return nil, fmt.Errorf("unsupported pagination type %q", cfg.Type)
	}
}

func expandQueryParam(base, paramName string, start, count int) ([]string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if paramName == "" {
		paramName = "page"
	}

	urls := make([]string, 0, count)
	for page := start; page < start+count; page++ {
		query := u.Query()
		query.Set(paramName, strconv.Itoa(page))
		paged := *u
		paged.RawQuery = query.Encode()
		urls = append(urls, paged.String())
	}
	return urls, nil
}

func expandPathSegment(base, urlPattern string, start, count int) ([]string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	var re *regexp.Regexp
	var format string
	switch urlPattern {
	case "/p/N":
		re, format = pathPPattern, "/p/%d"
	case "/N":
		re, format = pathTrailPattern, "/%d"
	default:
		re, format = pathPagePattern, "/page/%d"
	}

	urls := make([]string, 0, count)
	for page := start; page < start+count; page++ {
		paged := *u
		segment := fmt.Sprintf(format, page)
		if re.MatchString(u.Path) {
			paged.Path = re.ReplaceAllString(u.Path, segment)
		} else {
			paged.Path = strings.TrimRight(u.Path, "/") + segment
		}
		urls = append(urls, paged.String())
	}
	return urls, nil
}

// NextPageURL resolves the next-page link on a fetched page, absolute
// against the page URL. Returns "" when the chain ends.
func (s *Service) NextPageURL(htmlContent string, pageURL string, cfg *models.PaginationConfig) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var href string
	if cfg != nil && cfg.Selector != "" {
		href, _ = doc.Find(cfg.Selector).First().Attr("href")
	}
	if href == "" {
		href = findNextHref(doc)
	}
	if href == "" {
		return "", nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}
	next, err := url.Parse(href)
	if err != nil {
		return "", nil
	}
	return base.ResolveReference(next).String(), nil
}

// findNextHref scans for a next link by rel, class, then link text
func findNextHref(doc *goquery.Document) string {
	if href, ok := doc.Find(`a[rel="next"]`).First().Attr("href"); ok {
		return href
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		if strings.Contains(strings.ToLower(class), "next") || nextTextPattern.MatchString(sel.Text()) {
			found, _ = sel.Attr("href")
			return false
		}
		return true
	})
	return found
}
