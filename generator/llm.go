package generator

import (
	"context"
	"fmt"
	"strings"
)

// LLMClient abstracts the model so it can be swapped or faked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings configures a concrete client.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

const (
	ProviderTemplate = "template"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

// NewLLM picks a client by provider. Nil settings or an empty provider give
// the offline template.
func NewLLM(cfg *LLMSettings) (LLMClient, error) {
	if cfg == nil {
		return TemplateLLM{}, nil
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderTemplate:
		return TemplateLLM{}, nil
	case ProviderOpenAI:
		return NewOpenAILLM(cfg)
	case ProviderDeepSeek:
		// OpenAI-compatible, but there is no default endpoint to fall back on.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url")
		}
		return NewOpenAILLM(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
