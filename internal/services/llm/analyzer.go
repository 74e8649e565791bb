package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

const autoGeneratedReason = "Auto-generated column"

// Service is the two-phase LLM extractor: page analysis against a target
// schema, capture config creation from accepted columns, and runtime
// structured extraction.
type Service struct {
	client interfaces.LLMClient
	config common.LLMConfig
	logger arbor.ILogger
}

// NewService wires the extractor to a provider client
func NewService(client interfaces.LLMClient, config common.LLMConfig, logger arbor.ILogger) *Service {
	return &Service{
		client: client,
		config: config,
		logger: logger,
	}
}

// analyzedColumn is the per-column shape demanded from the analysis call
type analyzedColumn struct {
	ColumnName     string  `json:"column_name"`
	IsAvailable    bool    `json:"is_available"`
	Confidence     float64 `json:"confidence"`
	SampleValue    string  `json:"sample_value"`
	Reasoning      string  `json:"reasoning"`
	ExtractionHint string  `json:"extraction_hint"`
}

// AnalyzePage rates each target column's availability on a page. Identity
// primary keys and bookkeeping timestamp columns are marked unavailable
// without consulting the LLM. A failed or malformed LLM call degrades the
// remaining columns to unavailable verdicts rather than erroring.
func (s *Service) AnalyzePage(ctx context.Context, htmlContent string, columns []models.ColumnInfo, pageURL string) []models.ColumnAnalysis {
	results := make([]models.ColumnAnalysis, len(columns))
	var candidates []models.ColumnInfo

	for i, col := range columns {
		if isAutoGenerated(col) {
			results[i] = models.ColumnAnalysis{
				ColumnName:  col.Name,
				DataType:    col.Type,
				IsAvailable: false,
				Confidence:  0,
				Reasoning:   autoGeneratedReason,
			}
			continue
		}
		candidates = append(candidates, col)
	}
	if len(candidates) == 0 {
		return results
	}

	verdicts, err := s.analyzeCandidates(ctx, htmlContent, candidates, pageURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("LLM page analysis failed")
		verdicts = nil
	}

	for i, col := range columns {
		if results[i].ColumnName != "" {
			continue
		}
		if v, ok := verdicts[col.Name]; ok {
			results[i] = models.ColumnAnalysis{
				ColumnName:     col.Name,
				DataType:       col.Type,
				IsAvailable:    v.IsAvailable,
				Confidence:     clamp01(v.Confidence),
				SampleValue:    v.SampleValue,
				Reasoning:      v.Reasoning,
				ExtractionHint: v.ExtractionHint,
			}
			continue
		}
		results[i] = models.ColumnAnalysis{
			ColumnName:  col.Name,
			DataType:    col.Type,
			IsAvailable: false,
			Confidence:  0,
			Reasoning:   "LLM analysis failed",
		}
	}
	return results
}

func (s *Service) analyzeCandidates(ctx context.Context, htmlContent string, candidates []models.ColumnInfo, pageURL string) (map[string]analyzedColumn, error) {
	excerpts := cleanPage(htmlContent)

	var columnList strings.Builder
	for _, col := range candidates {
		nullable := "not null"
		if col.Nullable {
			nullable = "nullable"
		}
		fmt.Fprintf(&columnList, "- %s (%s, %s)\n", col.Name, col.Type, nullable)
	}

	prompt := fmt.Sprintf(`Analyze this web page and decide, for each database column below, whether the page contains data that could populate it.

Page URL: %s

Target columns:
%s
Page text:
%s

Page HTML:
%s

Respond with a JSON object of the form:
{"columns":[{"column_name":"...","is_available":true,"confidence":0.0,"sample_value":"...","reasoning":"...","extraction_hint":"..."}]}

Include every listed column exactly once. Confidence is 0.0 to 1.0. sample_value is an actual value seen on the page, or empty. extraction_hint describes where on the page the value appears.`,
		pageURL, columnList.String(), excerpts.Text, excerpts.HTML)

	response, err := s.client.Complete(ctx, &interfaces.CompletionRequest{
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		Format:      interfaces.ResponseJSONObject,
		Messages: []interfaces.Message{
			{Role: "system", Content: "You are a data extraction analyst. You assess which database columns a web page can populate."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Columns []analyzedColumn `json:"columns"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(response)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}

	verdicts := make(map[string]analyzedColumn, len(parsed.Columns))
	for _, col := range parsed.Columns {
		verdicts[col.ColumnName] = col
	}
	return verdicts, nil
}

// isAutoGenerated reports whether a column is populated by the database
// rather than extractable from a page
func isAutoGenerated(col models.ColumnInfo) bool {
	typeLower := strings.ToLower(col.Type)
	defaultLower := strings.ToLower(col.DefaultValue)

	if col.IsPrimaryKey &&
		(strings.Contains(typeLower, "int") || strings.Contains(typeLower, "serial") || strings.Contains(typeLower, "identity")) {
		return true
	}
	if strings.Contains(defaultLower, "nextval") || strings.Contains(defaultLower, "identity") ||
		strings.Contains(defaultLower, "autoincrement") {
		return true
	}

	nameLower := strings.ToLower(col.Name)
	if (strings.HasSuffix(nameLower, "_at") || nameLower == "createdat" || nameLower == "updatedat") &&
		(strings.Contains(typeLower, "timestamp") || strings.Contains(typeLower, "date")) {
		return true
	}
	return false
}

// stripJSONFences removes a surrounding markdown code fence from a model
// response
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
