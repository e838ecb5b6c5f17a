// Package handlers implements the HTTP endpoints: assignment breakdowns,
// scaffolds, hints, and code runs. Handlers depend on small interfaces so
// tests can swap in fakes for the LLM-backed agents and the runner.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/queue"
)

// Parser parses assignments and generates test cases.
type Parser interface {
	ParseAssignment(ctx context.Context, assignment domain.Assignment) (*domain.TaskBreakdown, error)
	GenerateTestCases(ctx context.Context, assignmentText string, files []domain.FileEntry, targetLanguage string) []domain.TestCase
}

// Codegen produces starter code and file scaffolds.
type Codegen interface {
	GenerateStarterCode(ctx context.Context, req domain.ScaffoldRequest) (*domain.StarterCode, error)
	GenerateFileScaffold(ctx context.Context, req domain.FileScaffoldRequest) (*domain.FileScaffold, error)
}

// Helper produces progressive hints.
type Helper interface {
	ProvideHint(ctx context.Context, req domain.HintRequest) (*domain.Hint, error)
}

// Runner executes submissions, plain or against test cases.
type Runner interface {
	Run(ctx context.Context, sub domain.Submission) (*domain.Execution, error)
	RunWithTests(ctx context.Context, sub domain.Submission, cases []domain.TestCase) (*domain.TestRun, error)
}

// TestGenPublisher queues asynchronous test generation. Nil means tests
// are generated inline during parsing.
type TestGenPublisher interface {
	PublishTestGenJob(ctx context.Context, job *queue.TestGenJob) error
}

// apiError is the error payload inside the response envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse is the JSON envelope for error responses.
type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// writeDomainError maps domain sentinel errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_LANGUAGE", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, domain.ErrBreakdownNotFound),
		errors.Is(err, domain.ErrHintSessionNotFound),
		errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		slog.Error("internal error", "error", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
	}
}
