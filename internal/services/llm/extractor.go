package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// ExtractStructured runs the capture config against one fetched page and
// returns the extracted rows keyed by target column name. Required fields
// missing from an item become explicit nulls; optional missing fields are
// dropped. Items that yield no values at all are discarded.
func (s *Service) ExtractStructured(ctx context.Context, htmlContent string, cfg *models.LLMCaptureConfig, pageURL string) ([]interfaces.Row, error) {
	if cfg == nil || len(cfg.ColumnMappings) == 0 {
		return nil, fmt.Errorf("capture config has no column mappings")
	}

	excerpts := cleanPage(htmlContent)
	content := fmt.Sprintf("Page URL: %s\n\nPage text:\n%s\n\nPage HTML:\n%s", pageURL, excerpts.Text, excerpts.HTML)

	model := cfg.Model
	if model == "" {
		model = s.config.Model
	}

	response, err := s.client.Complete(ctx, &interfaces.CompletionRequest{
		Model:       model,
		Temperature: cfg.Temperature,
		Format:      interfaces.ResponseJSONSchema,
		Schema:      cfg.JSONSchema,
		Messages: []interfaces.Message{
			{Role: "system", Content: cfg.SystemPrompt},
			{Role: "user", Content: content},
		},
	})
	if err != nil {
		return nil, &models.ExtractionError{URL: pageURL, Err: err}
	}

	var parsed struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(response)), &parsed); err != nil {
		return nil, &models.ExtractionError{URL: pageURL, Err: fmt.Errorf("malformed extraction response: %w", err)}
	}

	rows := make([]interfaces.Row, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		row := make(interfaces.Row, len(cfg.ColumnMappings))
		empty := true
		for _, mapping := range cfg.ColumnMappings {
			value, ok := item[mapping.JSONField]
			if !ok || value == nil {
				if mapping.IsRequired {
					row[mapping.ColumnName] = nil
				}
				continue
			}
			row[mapping.ColumnName] = value
			empty = false
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	s.logger.Debug().
		Str("url", pageURL).
		Int("items", len(parsed.Items)).
		Int("rows", len(rows)).
		Msg("Structured extraction completed")

	return rows, nil
}
