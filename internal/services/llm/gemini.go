package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
)

// GeminiClient implements interfaces.LLMClient against the Gemini API.
// Constrained formats use the API's native JSON response mode, with the
// request schema converted to a genai.Schema when one is supplied.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  arbor.ILogger
}

func newGeminiClient(cfg common.LLMConfig, logger arbor.ILogger) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Complete runs one completion call
func (c *GeminiClient) Complete(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.model
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}

	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if config.SystemInstruction == nil {
				config.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
			}
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
			})
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("completion request has no user messages")
	}

	switch req.Format {
	case interfaces.ResponseJSONObject:
		config.ResponseMIMEType = "application/json"
	case interfaces.ResponseJSONSchema:
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schemaFromMap(req.Schema)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty response")
	}

	c.logger.Debug().Str("model", model).Int("response_size", out.Len()).Msg("Gemini completion succeeded")
	return out.String(), nil
}

// schemaFromMap converts a plain JSON-schema map into the genai schema
// type. Only the subset used by capture configs is mapped: type,
// properties, items, required and description.
func schemaFromMap(m map[string]interface{}) *genai.Schema {
	if m == nil {
		return nil
	}

	schema := &genai.Schema{}

	switch t, _ := m["type"].(string); t {
	case "object":
		schema.Type = genai.TypeObject
	case "array":
		schema.Type = genai.TypeArray
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	default:
		schema.Type = genai.TypeString
	}

	if desc, ok := m["description"].(string); ok {
		schema.Description = desc
	}

	if props, ok := m["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]interface{}); ok {
				schema.Properties[name] = schemaFromMap(sub)
			}
		}
	}

	if items, ok := m["items"].(map[string]interface{}); ok {
		schema.Items = schemaFromMap(items)
	}

	if required, ok := m["required"].([]interface{}); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}
	if required, ok := m["required"].([]string); ok {
		schema.Required = append(schema.Required, required...)
	}

	return schema
}
