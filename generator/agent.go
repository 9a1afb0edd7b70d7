package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Agent turns a Spec into a Draft through an LLMClient.
type Agent struct {
	llm    LLMClient
	logger *zap.Logger
	now    func() time.Time
}

func NewAgent(llm LLMClient, logger *zap.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{llm: llm, logger: logger, now: time.Now}, nil
}

// Generate builds the prompt, asks the model and validates the output.
func (a *Agent) Generate(ctx context.Context, spec Spec) (Draft, error) {
	if spec.Date.IsZero() {
		spec.Date = a.now()
	}
	prompt := BuildPrompt(spec)

	start := time.Now()
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return Draft{}, fmt.Errorf("generate %q: %w", spec.Topic, err)
	}
	draft, err := PostProcess(raw, spec)
	if err != nil {
		return Draft{}, err
	}
	a.logger.Info("draft generated",
		zap.String("title", draft.Title),
		zap.Int("markdown_bytes", len(draft.Markdown)),
		zap.Duration("took", time.Since(start)))
	return draft, nil
}
