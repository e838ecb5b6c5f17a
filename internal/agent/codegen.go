package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/jsonx"
	"github.com/scaffyhq/scaffy/internal/llm"
	"github.com/scaffyhq/scaffy/internal/schema"
	"github.com/scaffyhq/scaffy/internal/security"
)

// CodegenAgent generates starter code: per-task snippets and whole-file
// scaffolds. File scaffolds degrade to a synthetic skeleton when the
// model cannot produce a valid one, because a student waiting on a
// scaffold is better served by generic TODOs than by an error page.
type CodegenAgent struct {
	provider   llm.Provider
	extractor  *jsonx.Extractor
	validator  *schema.Validator
	logger     *slog.Logger
	maxRetries int
}

// NewCodegenAgent creates a codegen agent on the given provider.
func NewCodegenAgent(provider llm.Provider, logger *slog.Logger) *CodegenAgent {
	ex := jsonx.NewExtractor()
	// A truncated scaffold reply that lost its task_todos is still usable;
	// the TODO map is rebuildable client-side from the tasks.
	ex.PlaceholderFields = map[string]any{"task_todos": map[string]any{}}

	return &CodegenAgent{
		provider:   provider,
		extractor:  ex,
		validator:  schema.NewValidator(),
		logger:     logger,
		maxRetries: defaultMaxRetries,
	}
}

// requiredStarterFields are checked on starter-code replies. Starter code
// has no schema record kind; its shape check is this list.
var requiredStarterFields = []string{"code_snippet", "instructions", "todos"}

// GenerateStarterCode generates a per-task starter snippet.
func (a *CodegenAgent) GenerateStarterCode(ctx context.Context, req domain.ScaffoldRequest) (*domain.StarterCode, error) {
	if err := security.ValidateTextLength(req.TaskDescription, security.MaxAssignmentTextLength, "task description"); err != nil {
		return nil, err
	}
	if err := security.ValidateLanguage(req.ProgrammingLanguage); err != nil {
		return nil, err
	}

	prompt := codegenPrompt(req)
	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		resp, err := a.provider.Generate(ctx, &llm.Request{Prompt: prompt, MaxTokens: 2500})
		if err != nil {
			return nil, fmt.Errorf("generate starter code: %w", err)
		}

		doc, trace, err := a.extractor.ExtractWithTrace(resp.Content)
		if err != nil {
			lastErr = err
			a.logger.Warn("starter code attempt failed", "attempt", attempt, "error", err)
			prompt += correctionSuffix
			continue
		}
		if trace.Strategy != jsonx.StrategyDirect {
			a.logger.Info("repaired starter code reply", "strategy", trace.Strategy, "truncated", resp.Truncated())
		}

		if missing := missingField(doc, requiredStarterFields); missing != "" {
			lastErr = fmt.Errorf("missing required field %q in starter code reply", missing)
			a.logger.Warn("starter code attempt failed", "attempt", attempt, "error", lastErr)
			prompt += correctionSuffix
			continue
		}

		var starter domain.StarterCode
		if err := decodeInto(doc, &starter); err != nil {
			lastErr = fmt.Errorf("decode starter code: %w", err)
			prompt += correctionSuffix
			continue
		}
		return &starter, nil
	}

	return nil, fmt.Errorf("failed to generate starter code after %d attempts: %w", a.maxRetries, lastErr)
}

// GenerateFileScaffold generates the scaffold for one file of a
// breakdown. After exhausting retries it returns a degraded synthetic
// scaffold with one generic TODO per task, never an error, unless the
// request itself is invalid.
func (a *CodegenAgent) GenerateFileScaffold(ctx context.Context, req domain.FileScaffoldRequest) (*domain.FileScaffold, error) {
	if err := security.ValidateLanguage(req.ProgrammingLanguage); err != nil && req.IsCodeFile() {
		return nil, err
	}
	req.Filename = security.SanitizeFilename(req.Filename)
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is empty after sanitization", domain.ErrInvalidInput)
	}

	prompt := fileScaffoldPrompt(req)
	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		resp, err := a.provider.Generate(ctx, &llm.Request{Prompt: prompt, MaxTokens: 4000})
		if err != nil {
			lastErr = err
			break
		}

		doc, trace, err := a.extractor.ExtractWithTrace(resp.Content)
		if err != nil {
			lastErr = err
			a.logger.Warn("file scaffold attempt failed", "file", req.Filename, "attempt", attempt, "error", err)
			prompt += correctionSuffix
			continue
		}
		if trace.Strategy != jsonx.StrategyDirect {
			a.logger.Info("repaired file scaffold reply",
				"file", req.Filename,
				"strategy", trace.Strategy,
				"truncated", resp.Truncated())
		}

		// The model sometimes drops or mangles the filename; pin it before
		// validation so the scaffold always round-trips under our name.
		doc["filename"] = req.Filename

		if err := a.validator.Validate(doc, schema.FileScaffold); err != nil {
			lastErr = err
			a.logger.Warn("file scaffold attempt failed", "file", req.Filename, "attempt", attempt, "error", err)
			prompt += correctionSuffix
			continue
		}

		var scaffold domain.FileScaffold
		if err := decodeInto(doc, &scaffold); err != nil {
			lastErr = fmt.Errorf("decode file scaffold: %w", err)
			prompt += correctionSuffix
			continue
		}
		return &scaffold, nil
	}

	a.logger.Warn("falling back to degraded scaffold", "file", req.Filename, "error", lastErr)
	return a.fallbackScaffold(req), nil
}

// fallbackScaffold synthesizes a minimal scaffold: a comment header plus
// one generic TODO per task. Degraded, but enough for the student to
// start typing.
func (a *CodegenAgent) fallbackScaffold(req domain.FileScaffoldRequest) *domain.FileScaffold {
	marker := commentMarker(req)

	var b strings.Builder
	todos := make(map[string][]string)

	fmt.Fprintf(&b, "%s %s\n%s Scaffold generation was unavailable; work through the tasks below.\n\n", marker, req.Filename, marker)

	tasks := append([]domain.Task(nil), req.Tasks...)
	for _, c := range req.Classes {
		tasks = append(tasks, c.Tasks...)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	for _, t := range tasks {
		fmt.Fprintf(&b, "%s TODO (task %d): %s\n", marker, t.ID, t.Title)
		todos[strconv.Itoa(t.ID)] = []string{"Implement: " + t.Title}
	}

	return &domain.FileScaffold{
		Filename:    req.Filename,
		CodeSnippet: b.String(),
		TaskTodos:   todos,
	}
}

func commentMarker(req domain.FileScaffoldRequest) string {
	if !req.IsCodeFile() {
		return "#"
	}
	switch strings.ToLower(req.ProgrammingLanguage) {
	case "python", "ruby":
		return "#"
	default:
		return "//"
	}
}

func missingField(doc jsonx.Document, fields []string) string {
	for _, f := range fields {
		if _, ok := doc[f]; !ok {
			return f
		}
	}
	return ""
}
