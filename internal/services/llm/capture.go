package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// requiredConfidence is the analysis confidence at or above which a column
// becomes required in the capture schema
const requiredConfidence = 0.7

// CreateCapture builds a reusable structured-output capture config from the
// available columns of a page analysis. Columns with zero confidence are
// dropped; columns at or above requiredConfidence become required fields of
// the items schema.
func (s *Service) CreateCapture(ctx context.Context, tableName string, analyses []models.ColumnAnalysis) (*models.LLMCaptureConfig, error) {
	var accepted []models.ColumnAnalysis
	for _, a := range analyses {
		if a.IsAvailable && a.Confidence > 0 {
			accepted = append(accepted, a)
		}
	}
	if len(accepted) == 0 {
		return nil, fmt.Errorf("no available columns to capture for table %s", tableName)
	}

	properties := make(map[string]interface{}, len(accepted))
	var required []string
	mappings := make([]models.LLMColumnMapping, 0, len(accepted))

	for _, a := range accepted {
		jsonType := jsonTypeForDBType(a.DataType)
		properties[a.ColumnName] = map[string]interface{}{
			"type":        jsonType,
			"description": mappingDescription(a),
		}

		isRequired := a.Confidence >= requiredConfidence
		if isRequired {
			required = append(required, a.ColumnName)
		}

		mappings = append(mappings, models.LLMColumnMapping{
			ColumnName:  a.ColumnName,
			JSONField:   a.ColumnName,
			Description: mappingDescription(a),
			DataType:    jsonType,
			IsRequired:  isRequired,
		})
	}

	itemSchema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		itemSchema["required"] = required
	}

	schema := map[string]interface{}{
		"type":     "object",
		"required": []string{"items"},
		"properties": map[string]interface{}{
			"items": map[string]interface{}{
				"type":  "array",
				"items": itemSchema,
			},
		},
	}

	systemPrompt := s.generateSystemPrompt(ctx, tableName, accepted)

	temperature := s.config.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}

	config := &models.LLMCaptureConfig{
		SystemPrompt:   systemPrompt,
		JSONSchema:     schema,
		ColumnMappings: mappings,
		Model:          s.config.Model,
		Temperature:    temperature,
	}

	s.logger.Info().
		Str("table", tableName).
		Int("columns", len(mappings)).
		Int("required", len(required)).
		Msg("Created LLM capture config")

	return config, nil
}

// generateSystemPrompt asks the LLM to compose the extraction prompt, with
// a deterministic template as the fallback.
func (s *Service) generateSystemPrompt(ctx context.Context, tableName string, accepted []models.ColumnAnalysis) string {
	var columnHints strings.Builder
	for _, a := range accepted {
		fmt.Fprintf(&columnHints, "- %s: %s", a.ColumnName, a.Reasoning)
		if a.ExtractionHint != "" {
			fmt.Fprintf(&columnHints, " (%s)", a.ExtractionHint)
		}
		columnHints.WriteString("\n")
	}

	request := fmt.Sprintf(`Write a concise system prompt for an LLM that extracts records for the database table %q from web pages. The extractor must return a JSON object with an "items" array, one element per record, with these fields:

%s
Reply with only the prompt text.`, tableName, columnHints.String())

	response, err := s.client.Complete(ctx, &interfaces.CompletionRequest{
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		Format:      interfaces.ResponseFree,
		Messages: []interfaces.Message{
			{Role: "user", Content: request},
		},
	})
	if err != nil || strings.TrimSpace(response) == "" {
		s.logger.Debug().Err(err).Msg("Prompt generation failed, using template")
		return defaultSystemPrompt(tableName, accepted)
	}
	return strings.TrimSpace(response)
}

// defaultSystemPrompt is the deterministic fallback extraction prompt
func defaultSystemPrompt(tableName string, accepted []models.ColumnAnalysis) string {
	names := make([]string, len(accepted))
	for i, a := range accepted {
		names[i] = a.ColumnName
	}
	return fmt.Sprintf(
		"Extract records for the %s table from the provided web page content. "+
			"Return a JSON object with an \"items\" array containing one object per record. "+
			"Each object has the fields: %s. "+
			"Use null for values that are required but not present. Do not invent data.",
		tableName, strings.Join(names, ", "))
}

// jsonTypeForDBType maps a raw database column type to a JSON schema type
func jsonTypeForDBType(dbType string) string {
	t := strings.ToLower(dbType)
	switch {
	case strings.Contains(t, "bool"):
		return "boolean"
	case strings.Contains(t, "int"),
		strings.Contains(t, "float"),
		strings.Contains(t, "decimal"),
		strings.Contains(t, "numeric"),
		strings.Contains(t, "real"),
		strings.Contains(t, "double"):
		return "number"
	default:
		return "string"
	}
}

func mappingDescription(a models.ColumnAnalysis) string {
	if a.ExtractionHint != "" {
		return a.ExtractionHint
	}
	return a.Reasoning
}
