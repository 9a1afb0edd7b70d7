package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openAIRequestTimeout = 90 * time.Second
	openAIMaxRetries     = 2
)

// OpenAILLM talks to any chat-completions endpoint that speaks the OpenAI
// protocol. The client is built once and reused for every Complete.
type OpenAILLM struct {
	client openai.Client
	model  string
}

// NewOpenAILLM validates settings and builds the client. Extra options are
// appended after the ones derived from settings.
func NewOpenAILLM(cfg *LLMSettings, extra ...option.RequestOption) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set llm.api_key or NOTE_LLM_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(openAIRequestTimeout),
		option.WithMaxRetries(openAIMaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)
	return &OpenAILLM{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

// Model is the chat model every request names.
func (o *OpenAILLM) Model() string { return o.model }

// Complete sends the system and user turns and returns the first choice.
// A reply cut off by the token limit is an error.
func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", o.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): no choices", o.model)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return "", fmt.Errorf("chat completion (%s): reply truncated at the token limit", o.model)
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion (%s): empty reply", o.model)
	}
	return content, nil
}
