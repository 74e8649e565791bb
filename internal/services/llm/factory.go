// -----------------------------------------------------------------------
// LLM Provider Factory - Claude and Gemini structured-output clients
// -----------------------------------------------------------------------

package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
)

// NewClient creates the configured provider client
func NewClient(cfg common.LLMConfig, logger arbor.ILogger) (interfaces.LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required (set LLM_API_KEY or llm.api_key in config)")
	}

	logger.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("Initializing LLM client")

	switch cfg.Provider {
	case "claude":
		return newClaudeClient(cfg, logger), nil
	case "gemini":
		return newGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q: must be 'claude' or 'gemini'", cfg.Provider)
	}
}
