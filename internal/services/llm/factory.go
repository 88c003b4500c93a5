package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/audiens/internal/common"
	"github.com/ternarybob/audiens/internal/interfaces"
)

// NewLLMService creates the LLM service implementation selected by
// llm.default_provider
func NewLLMService(cfg *common.Config, storageManager interfaces.StorageManager, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := cfg.LLM.DefaultProvider
	if provider == "" {
		provider = common.LLMProviderClaude
	}

	logger.Info().Str("provider", string(provider)).Msg("Initializing LLM service")

	switch provider {
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, storageManager, logger)

	case common.LLMProviderGemini:
		return NewGeminiService(&cfg.Gemini, storageManager, logger)

	default:
		return nil, fmt.Errorf("invalid LLM provider '%s': must be 'claude' or 'gemini'", provider)
	}
}
