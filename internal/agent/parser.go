// Package agent implements the model-facing agents: assignment parsing,
// scaffold generation, and live hints. Each agent owns its prompt, a
// bounded semantic retry loop, and the extract-then-validate pipeline
// that turns raw model text into domain values.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/jsonx"
	"github.com/scaffyhq/scaffy/internal/llm"
	"github.com/scaffyhq/scaffy/internal/schema"
	"github.com/scaffyhq/scaffy/internal/security"
)

// defaultMaxRetries bounds the semantic retry loop: one fresh attempt
// plus two with the correction suffix appended.
const defaultMaxRetries = 3

// ParserAgent turns a raw assignment into a validated task breakdown
// with generated test cases.
type ParserAgent struct {
	provider   llm.Provider
	extractor  *jsonx.Extractor
	validator  *schema.Validator
	logger     *slog.Logger
	maxRetries int
	deferTests bool
}

// NewParserAgent creates a parser agent on the given provider.
func NewParserAgent(provider llm.Provider, logger *slog.Logger) *ParserAgent {
	return &ParserAgent{
		provider:   provider,
		extractor:  jsonx.NewExtractor(),
		validator:  schema.NewValidator(),
		logger:     logger,
		maxRetries: defaultMaxRetries,
	}
}

// ParseAssignment parses an assignment into files and tasks, validates
// the shape, and attaches generated test cases. Attempts that fail
// extraction or validation are retried with a stricter prompt; a provider
// transport failure is not retried here because the resilience wrapper
// below already did.
func (a *ParserAgent) ParseAssignment(ctx context.Context, assignment domain.Assignment) (*domain.TaskBreakdown, error) {
	if err := security.ValidateAssignmentText(assignment.AssignmentText); err != nil {
		return nil, err
	}
	if err := security.CheckContent(assignment.AssignmentText, "assignment text"); err != nil {
		return nil, err
	}
	if err := security.ValidateLanguage(assignment.TargetLanguage); err != nil {
		return nil, err
	}

	prompt := parserPrompt(assignment)
	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		a.logger.Info("parsing assignment", "attempt", attempt, "max_attempts", a.maxRetries)

		resp, err := a.provider.Generate(ctx, &llm.Request{Prompt: prompt, MaxTokens: 2000})
		if err != nil {
			return nil, fmt.Errorf("generate breakdown: %w", err)
		}

		breakdown, err := a.decodeBreakdown(resp)
		if err != nil {
			lastErr = err
			a.logger.Warn("breakdown attempt failed", "attempt", attempt, "error", err)
			prompt += correctionSuffix
			continue
		}

		if err := security.ValidateFilesCount(len(breakdown.Files)); err != nil {
			return nil, err
		}
		if err := security.ValidateTasksCount(breakdown.TaskCount()); err != nil {
			return nil, err
		}

		breakdown.ID = uuid.New()
		breakdown.CreatedAt = time.Now().UTC()
		if !a.deferTests {
			breakdown.Tests = a.GenerateTestCases(ctx, assignment.AssignmentText, breakdown.Files, assignment.TargetLanguage)
		}

		a.logger.Info("assignment parsed",
			"breakdown_id", breakdown.ID,
			"files", len(breakdown.Files),
			"tasks", breakdown.TaskCount(),
			"tests", len(breakdown.Tests))
		return breakdown, nil
	}

	return nil, fmt.Errorf("failed to parse assignment after %d attempts: %w", a.maxRetries, lastErr)
}

func (a *ParserAgent) decodeBreakdown(resp *llm.Response) (*domain.TaskBreakdown, error) {
	doc, trace, err := a.extractor.ExtractWithTrace(resp.Content)
	if err != nil {
		return nil, err
	}
	if trace.Strategy != jsonx.StrategyDirect {
		a.logger.Info("repaired breakdown reply",
			"strategy", trace.Strategy,
			"truncated", resp.Truncated(),
			"response_bytes", len(resp.Content))
	}

	if err := a.validator.Validate(doc, schema.AssignmentBreakdown); err != nil {
		return nil, err
	}

	var breakdown domain.TaskBreakdown
	if err := decodeInto(doc, &breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	return &breakdown, nil
}

// DeferTestGeneration makes ParseAssignment return without generating
// tests, for deployments that attach them asynchronously through the
// queue instead.
func (a *ParserAgent) DeferTestGeneration() {
	a.deferTests = true
}

// GenerateTestCases generates test cases for a parsed breakdown. Fail-soft
// throughout: invalid cases are skipped, and exhausted retries yield an
// empty list rather than failing the whole breakdown.
func (a *ParserAgent) GenerateTestCases(ctx context.Context, assignmentText string, files []domain.FileEntry, targetLanguage string) []domain.TestCase {
	prompt := testGenPrompt(assignmentText, files, targetLanguage)

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		resp, err := a.provider.Generate(ctx, &llm.Request{Prompt: prompt, MaxTokens: 2500})
		if err != nil {
			a.logger.Warn("test generation call failed", "attempt", attempt, "error", err)
			return nil
		}

		list, err := a.extractor.ExtractList(resp.Content)
		if err != nil {
			a.logger.Warn("test generation attempt failed", "attempt", attempt, "error", err)
			prompt += listCorrectionSuffix
			continue
		}

		cases := make([]domain.TestCase, 0, len(list))
		for i, item := range list {
			if err := a.validator.ValidateTestCase(item, i); err != nil {
				a.logger.Warn("skipping invalid test case", "index", i, "error", err)
				continue
			}
			var tc domain.TestCase
			if err := decodeInto(item, &tc); err != nil {
				a.logger.Warn("skipping undecodable test case", "index", i, "error", err)
				continue
			}
			cases = append(cases, tc)
		}

		if len(cases) > security.MaxTestCasesPerFile {
			cases = cases[:security.MaxTestCasesPerFile]
		}

		a.logger.Info("generated test cases", "count", len(cases))
		return cases
	}

	a.logger.Warn("test generation exhausted retries, returning no tests")
	return nil
}

// decodeInto round-trips an extracted value through JSON into a typed
// struct. json.Number survives marshaling, so integer fields stay exact.
func decodeInto(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
