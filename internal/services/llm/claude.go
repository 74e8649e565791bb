package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
)

// ClaudeClient implements interfaces.LLMClient against the Anthropic API.
// Claude has no native JSON mode, so constrained formats are enforced by
// appending the schema to the system instruction.
type ClaudeClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    arbor.ILogger
}

func newClaudeClient(cfg common.LLMConfig, logger arbor.ILogger) *ClaudeClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &ClaudeClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
	}
}

// Complete runs one completion call
func (c *ClaudeClient) Complete(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.model
	}

	var system string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if system == "" {
				system = msg.Content
			}
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("completion request has no user messages")
	}

	system = appendFormatInstruction(system, req)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages:    messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude completion failed: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("claude returned an empty response")
	}

	c.logger.Debug().Str("model", model).Int("response_size", len(out)).Msg("Claude completion succeeded")
	return out, nil
}

// appendFormatInstruction folds the response format contract into the
// system instruction.
func appendFormatInstruction(system string, req *interfaces.CompletionRequest) string {
	switch req.Format {
	case interfaces.ResponseJSONObject:
		return system + "\n\nRespond with a single valid JSON object and nothing else. No markdown fences, no commentary."
	case interfaces.ResponseJSONSchema:
		schema, _ := json.Marshal(req.Schema)
		return system + "\n\nRespond with a single valid JSON object conforming exactly to this JSON schema, and nothing else:\n" + string(schema)
	default:
		return system
	}
}
