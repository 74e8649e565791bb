package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Fazmin/syncengine/internal/models"
)

// candidateSelectors are tried in order when looking for repeating row
// containers. A candidate is kept when it matches at least minRepeats
// elements and at least one field is detected inside the first match.
var candidateSelectors = []string{
	"table tbody tr",
	"ul li",
	"ol li",
	".item",
	".card",
	".product",
	".listing",
	".result",
	".row",
	"[class*='item']",
	"[class*='card']",
	"[class*='product']",
	"[class*='listing']",
	"[class*='result']",
	"article",
}

const (
	minRepeats        = 3
	maxCandidates     = 5
	sampleHTMLLimit   = 500
	analysisLinkLimit = 50
)

// fieldProbe is one fixed probe applied inside a repeating element
type fieldProbe struct {
	name      string
	selector  string
	attribute string
}

var fieldProbes = []fieldProbe{
	{"link", "a", models.AttributeText},
	{"link_url", "a", models.AttributeHref},
	{"image", "img", models.AttributeSrc},
	{"heading", "h1, h2, h3, h4, h5, h6", models.AttributeText},
	{"price", "[class*='price']", models.AttributeText},
	{"title", "[class*='title']", models.AttributeText},
	{"name", "[class*='name']", models.AttributeText},
	{"description", "[class*='desc']", models.AttributeText},
	{"date", "[class*='date']", models.AttributeText},
	{"text", "span", models.AttributeText},
}

var booleanTokens = regexp.MustCompile(`(?i)^(true|false|yes|no)$`)

// AnalyzeStructure fetches a URL and detects repeating elements, their
// fields, pagination, forms and links. Candidates are ranked by
// count x field count; the top five are returned.
func (s *Service) AnalyzeStructure(ctx context.Context, pageURL string) (*models.WebsiteStructure, error) {
	htmlContent, err := s.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	structure := &models.WebsiteStructure{
		URL:               pageURL,
		Title:             strings.TrimSpace(doc.Find("title").First().Text()),
		RepeatingElements: detectRepeatingElements(doc),
		Forms:             detectForms(doc),
		Links:             collectLinks(doc, pageURL),
	}

	if pagination, err := detectPagination(htmlContent); err == nil {
		structure.Pagination = pagination
	}

	s.logger.Info().
		Str("url", pageURL).
		Int("repeating_elements", len(structure.RepeatingElements)).
		Msg("Analyzed page structure")

	return structure, nil
}

func detectRepeatingElements(doc *goquery.Document) []models.RepeatingElement {
	var candidates []models.RepeatingElement
	seen := make(map[string]bool)

	for _, selector := range candidateSelectors {
		matches := doc.Find(selector)
		count := matches.Length()
		if count < minRepeats {
			continue
		}

		first := matches.First()
		fields := detectFields(first)
		if len(fields) == 0 {
			continue
		}

		sample, _ := goquery.OuterHtml(first)
		if len(sample) > sampleHTMLLimit {
			sample = sample[:sampleHTMLLimit]
		}

		// Suppress duplicate candidates that anchor on the same first node
		fingerprint := strconv.Itoa(count) + ":" + sample
		if seen[fingerprint] {
			continue
		}
		seen[fingerprint] = true

		candidates = append(candidates, models.RepeatingElement{
			Selector:   selector,
			Count:      count,
			SampleHTML: sample,
			Fields:     fields,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Count*len(candidates[i].Fields) > candidates[j].Count*len(candidates[j].Fields)
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

func detectFields(container *goquery.Selection) []models.DetectedField {
	var fields []models.DetectedField
	used := make(map[string]bool)

	for _, probe := range fieldProbes {
		if used[probe.name] {
			continue
		}
		match := container.Find(probe.selector).First()
		if match.Length() == 0 {
			continue
		}

		var sample string
		if probe.attribute == models.AttributeText {
			sample = strings.TrimSpace(match.Text())
		} else {
			sample, _ = match.Attr(probe.attribute)
		}
		if sample == "" {
			continue
		}

		used[probe.name] = true
		fields = append(fields, models.DetectedField{
			Name:        probe.name,
			Selector:    probe.selector,
			Attribute:   probe.attribute,
			SampleValue: sample,
			DataType:    inferDataType(sample),
		})
	}
	return fields
}

// inferDataType guesses a value's type from its text form
func inferDataType(sample string) string {
	trimmed := strings.TrimSpace(sample)
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return "number"
	}
	if booleanTokens.MatchString(trimmed) {
		return "boolean"
	}
	if _, ok := parseDate(trimmed); ok {
		return "date"
	}
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)) {
		return "json"
	}
	return "string"
}

func detectForms(doc *goquery.Document) []models.DetectedForm {
	var forms []models.DetectedForm
	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		action, _ := sel.Attr("action")
		method, _ := sel.Attr("method")
		if method == "" {
			method = "GET"
		}

		var inputs []string
		sel.Find("input[name], select[name], textarea[name]").Each(func(_ int, input *goquery.Selection) {
			if name, ok := input.Attr("name"); ok {
				inputs = append(inputs, name)
			}
		})

		forms = append(forms, models.DetectedForm{
			Action: action,
			Method: strings.ToUpper(method),
			Inputs: inputs,
		})
	})
	return forms
}

func collectLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return true
		}

		resolved := href
		if base != nil {
			if u, err := url.Parse(href); err == nil {
				resolved = base.ResolveReference(u).String()
			}
		}

		if !seen[resolved] {
			seen[resolved] = true
			links = append(links, resolved)
		}
		return len(links) < analysisLinkLimit
	})
	return links
}
