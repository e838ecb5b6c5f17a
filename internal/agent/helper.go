package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/jsonx"
	"github.com/scaffyhq/scaffy/internal/llm"
	"github.com/scaffyhq/scaffy/internal/schema"
	"github.com/scaffyhq/scaffy/internal/security"
)

// HelperAgent produces progressive hints: gentle on the first ask for a
// task, moderate on the second, strong from the third on. The escalation
// level comes from the server-side help count, never from the client.
type HelperAgent struct {
	provider   llm.Provider
	extractor  *jsonx.Extractor
	validator  *schema.Validator
	logger     *slog.Logger
	maxRetries int
}

// NewHelperAgent creates a helper agent on the given provider.
func NewHelperAgent(provider llm.Provider, logger *slog.Logger) *HelperAgent {
	return &HelperAgent{
		provider:   provider,
		extractor:  jsonx.NewExtractor(),
		validator:  schema.NewValidator(),
		logger:     logger,
		maxRetries: defaultMaxRetries,
	}
}

// ProvideHint generates one hint. req.HelpCount is the number of hints
// already given for this task.
func (a *HelperAgent) ProvideHint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error) {
	if err := security.ValidateHintQuestion(req.Question); err != nil {
		return nil, err
	}
	if req.StudentCode != "" {
		if err := security.ValidateCode(req.StudentCode); err != nil {
			return nil, err
		}
		if err := security.CheckContent(req.StudentCode, "code"); err != nil {
			return nil, err
		}
	}

	level := domain.LevelForHelpCount(req.HelpCount)
	prompt := helperPrompt(req, level)
	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		resp, err := a.provider.Generate(ctx, &llm.Request{Prompt: prompt, MaxTokens: 1500})
		if err != nil {
			return nil, fmt.Errorf("generate hint: %w", err)
		}

		doc, trace, err := a.extractor.ExtractWithTrace(resp.Content)
		if err != nil {
			lastErr = err
			a.logger.Warn("hint attempt failed", "attempt", attempt, "error", err)
			prompt += correctionSuffix
			continue
		}
		if trace.Strategy != jsonx.StrategyDirect {
			a.logger.Info("repaired hint reply", "strategy", trace.Strategy, "truncated", resp.Truncated())
		}

		if err := a.validator.Validate(doc, schema.Hint); err != nil {
			lastErr = err
			a.logger.Warn("hint attempt failed", "attempt", attempt, "error", err)
			prompt += correctionSuffix
			continue
		}

		var hint domain.Hint
		if err := decodeInto(doc, &hint); err != nil {
			lastErr = fmt.Errorf("decode hint: %w", err)
			prompt += correctionSuffix
			continue
		}

		a.logger.Info("hint generated", "level", level, "help_count", req.HelpCount)
		return &hint, nil
	}

	return nil, fmt.Errorf("failed to generate hint after %d attempts: %w", a.maxRetries, lastErr)
}
