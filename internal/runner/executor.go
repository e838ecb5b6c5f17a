// Package runner executes student code: remotely through a Piston
// instance, or locally in one-shot Docker containers. The service layer
// on top wires generated test cases into runnable harnesses and matches
// their output.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// Executor runs one submission to completion.
type Executor interface {
	// Run executes the submission and returns its outcome. Run returns an
	// error only for executor failures; a failing program is a successful
	// execution with Success=false.
	Run(ctx context.Context, sub domain.Submission) (*domain.Execution, error)
}

// maxOutputLength caps captured stdout/stderr per run.
const maxOutputLength = 10_000

// pistonLanguages maps client language names onto Piston runtime names.
var pistonLanguages = map[string]string{
	"python":     "python3",
	"javascript": "javascript",
	"js":         "javascript",
	"typescript": "typescript",
	"java":       "java",
	"csharp":     "csharp",
	"c#":         "csharp",
	"cs":         "csharp",
	"c++":        "cpp",
	"cpp":        "cpp",
	"c":          "c",
	"go":         "go",
	"rust":       "rust",
}

// defaultStdin feeds programs that read interactive input. One value per
// line so several reads in a row all get something instead of EOF.
const defaultStdin = "1234\ntest_input\ny\nyes\n1\n0\nx\n"

func mapLanguage(language string) (string, error) {
	lang, ok := pistonLanguages[strings.ToLower(language)]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, language)
	}
	return lang, nil
}

func truncateOutput(s string) string {
	if len(s) > maxOutputLength {
		return s[:maxOutputLength]
	}
	return s
}
