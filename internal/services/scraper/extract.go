package scraper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// dateLayouts are tried in order when parsing date values
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

var nonNumericChars = regexp.MustCompile(`[^0-9.\-]`)

// Extract applies the active rules to a document. The first rule's
// selector anchors the row contexts: two or more matches make each match
// one row, a single match (or none) makes the whole document one row. All
// other selectors resolve relative to the row context.
func (s *Service) Extract(htmlContent string, rules []*models.ExtractionRule) ([]interfaces.Row, error) {
	active := make([]*models.ExtractionRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("no active extraction rules")
	}

	root, err := htmlquery.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	contexts, err := findNodes(root, active[0])
	if err != nil {
		return nil, err
	}
	anchored := len(contexts) >= 2
	if !anchored {
		contexts = []*html.Node{root}
	}

	rows := make([]interfaces.Row, 0, len(contexts))
	for _, ctx := range contexts {
		row := make(interfaces.Row, len(active))
		for i, rule := range active {
			if anchored && i == 0 {
				// The anchor rule's match IS the row context; read its
				// value from the context node directly.
				row[rule.TargetColumn] = s.valueFromNode(ctx, rule)
				continue
			}
			row[rule.TargetColumn] = s.extractValue(ctx, rule)
		}
		rows = append(rows, row)
	}

	s.logger.Debug().
		Int("contexts", len(contexts)).
		Int("rules", len(active)).
		Msg("Applied extraction rules")

	return rows, nil
}

// extractValue resolves one rule against a row context. Missing matches
// yield the rule's default value, or nil without one. Values that fail the
// validation regex are treated as missing.
func (s *Service) extractValue(ctx *html.Node, rule *models.ExtractionRule) interface{} {
	matches, err := findNodes(ctx, rule)
	if err != nil || len(matches) == 0 {
		return s.missingValue(rule)
	}
	return s.valueFromNode(matches[0], rule)
}

// valueFromNode runs the rule's attribute read, transform, validation and
// coercion against one matched node.
func (s *Service) valueFromNode(node *html.Node, rule *models.ExtractionRule) interface{} {
	raw := rawValue(node, rule.Attribute)

	value, err := applyTransform(raw, rule)
	if err != nil {
		s.logger.Warn().Err(err).Str("target_column", rule.TargetColumn).Msg("Transform failed")
		return s.missingValue(rule)
	}

	if rule.ValidationRegex != "" {
		re, err := regexp.Compile(rule.ValidationRegex)
		if err != nil || !re.MatchString(value) {
			return s.missingValue(rule)
		}
	}

	return coerce(value, rule.DataType)
}

func (s *Service) missingValue(rule *models.ExtractionRule) interface{} {
	if rule.DefaultValue != "" {
		return coerce(rule.DefaultValue, rule.DataType)
	}
	return nil
}

// findNodes resolves a rule's selector under a context node
func findNodes(ctx *html.Node, rule *models.ExtractionRule) ([]*html.Node, error) {
	if rule.SelectorType == models.SelectorTypeXPath {
		nodes, err := htmlquery.QueryAll(ctx, rule.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", rule.Selector, err)
		}
		return nodes, nil
	}

	doc := goquery.NewDocumentFromNode(ctx)
	return doc.Find(rule.Selector).Nodes, nil
}

// rawValue extracts the requested piece of a matched node
func rawValue(node *html.Node, attribute string) string {
	switch attribute {
	case "", models.AttributeText:
		return strings.TrimSpace(htmlquery.InnerText(node))
	case models.AttributeHTML:
		return htmlquery.OutputHTML(node, false)
	default:
		return htmlquery.SelectAttr(node, attribute)
	}
}

// applyTransform runs the rule's optional transform on the raw value
func applyTransform(value string, rule *models.ExtractionRule) (string, error) {
	switch rule.TransformType {
	case models.TransformNone:
		return value, nil
	case models.TransformTrim:
		return strings.TrimSpace(value), nil
	case models.TransformRegex:
		return applyRegexTransform(value, rule.TransformConfig)
	case models.TransformDate:
		t, ok := parseDate(strings.TrimSpace(value))
		if !ok {
			return "", nil
		}
		return t.Format(time.RFC3339), nil
	case models.TransformNumber:
		return nonNumericChars.ReplaceAllString(value, ""), nil
	case models.TransformJSON:
		if !json.Valid([]byte(value)) {
			return "", nil
		}
		return value, nil
	default:
		return value, fmt.Errorf("unknown transform type %q", rule.TransformType)
	}
}

// applyRegexTransform does replace-all when a replacement is configured,
// otherwise returns the configured group of the first match.
func applyRegexTransform(value, configJSON string) (string, error) {
	var cfg models.RegexTransformConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return "", fmt.Errorf("invalid regex transform config: %w", err)
	}

	pattern := cfg.Pattern
	if cfg.Flags != "" {
		pattern = "(?" + cfg.Flags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex pattern: %w", err)
	}

	if cfg.Replacement != nil {
		return re.ReplaceAllString(value, *cfg.Replacement), nil
	}

	match := re.FindStringSubmatch(value)
	if match == nil {
		return "", nil
	}
	if cfg.Group < 0 || cfg.Group >= len(match) {
		return "", nil
	}
	return match[cfg.Group], nil
}

// coerce converts a string value to the rule's data type. Values that fail
// coercion become nil.
func coerce(value string, dataType models.RuleDataType) interface{} {
	switch dataType {
	case models.RuleDataTypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil
		}
		return n
	case models.RuleDataTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "yes", "1", "on":
			return true
		case "false", "no", "0", "off":
			return false
		default:
			return nil
		}
	case models.RuleDataTypeDate:
		t, ok := parseDate(strings.TrimSpace(value))
		if !ok {
			return nil
		}
		return t
	case models.RuleDataTypeJSON:
		var out interface{}
		if err := json.Unmarshal([]byte(value), &out); err != nil {
			return nil
		}
		return out
	default:
		return value
	}
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
