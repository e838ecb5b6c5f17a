package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/security"
)

// Service is the execution facade the API uses: plain runs, and runs
// against the generated test cases of a breakdown.
type Service struct {
	executor Executor
	logger   *slog.Logger
}

// NewService creates a runner service on the given executor.
func NewService(executor Executor, logger *slog.Logger) *Service {
	return &Service{executor: executor, logger: logger}
}

// Run executes a submission once.
func (s *Service) Run(ctx context.Context, sub domain.Submission) (*domain.Execution, error) {
	if err := security.ValidateCode(sub.Code); err != nil {
		return nil, err
	}
	if err := security.CheckContent(sub.Code, "code"); err != nil {
		return nil, err
	}
	return s.executor.Run(ctx, sub)
}

// RunWithTests executes a submission against generated test cases. Each
// case appends a call harness to the student's code, runs it, and
// compares output. A failing or crashing case marks that result failed
// and moves on; only executor-level failures abort the whole run.
func (s *Service) RunWithTests(ctx context.Context, sub domain.Submission, cases []domain.TestCase) (*domain.TestRun, error) {
	if err := security.ValidateCode(sub.Code); err != nil {
		return nil, err
	}
	if err := security.CheckContent(sub.Code, "code"); err != nil {
		return nil, err
	}
	if err := security.ValidateTestCasesCount(len(cases)); err != nil {
		return nil, err
	}

	s.logger.Info("running test cases", "count", len(cases), "language", sub.Language)

	results := make([]domain.TestRunResult, 0, len(cases))
	passed, failed := 0, 0

	for _, tc := range cases {
		harness := testHarness(sub.Code, sub.Language, tc)

		exec, err := s.executor.Run(ctx, domain.Submission{Code: harness, Language: sub.Language})
		if err != nil {
			return nil, fmt.Errorf("run test %q: %w", tc.TestName, err)
		}

		actual := strings.TrimSpace(exec.Output)
		ok := exec.Error == "" && outputMatches(tc.ExpectedOutput, actual)
		if ok {
			passed++
		} else {
			failed++
		}

		results = append(results, domain.TestRunResult{
			TestName:       tc.TestName,
			Passed:         ok,
			InputData:      tc.InputData,
			ExpectedOutput: strings.TrimSpace(tc.ExpectedOutput),
			ActualOutput:   actual,
			Error:          exec.Error,
		})
	}

	// One plain run so syntax errors surface even when every harness
	// failed for the same reason.
	plain, err := s.executor.Run(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("run submission: %w", err)
	}

	return &domain.TestRun{
		Execution: domain.Execution{
			Success:       passed > 0 && failed == 0,
			Output:        plain.Output,
			Error:         plain.Error,
			ExitCode:      plain.ExitCode,
			ExecutionTime: plain.ExecutionTime,
		},
		TestResults: results,
		TestsPassed: passed,
		TestsFailed: failed,
	}, nil
}

// testHarness appends a call to the tested function and prints the
// result, in the submission's language.
func testHarness(code, language string, tc domain.TestCase) string {
	call := fmt.Sprintf("%s(%s)", tc.FunctionName, tc.InputData)

	switch strings.ToLower(language) {
	case "python":
		return fmt.Sprintf("%s\n\n# Test execution\nresult = %s\nprint(result)", code, call)
	case "javascript", "js":
		return fmt.Sprintf("%s\n\n// Test execution\nconst result = %s;\nconsole.log(result);", code, call)
	default:
		return fmt.Sprintf("%s\n\n%s;", code, call)
	}
}

// outputMatches compares actual output against an expectation, which is
// either a literal, "CONTAINS:a,b,c" (every listed substring present), or
// "COUNT:token:n" (token appears exactly n times). A CONTAINS list may
// embed COUNT segments for programs with nondeterministic ordering.
func outputMatches(expected, actual string) bool {
	expected = strings.TrimSpace(expected)

	switch {
	case strings.HasPrefix(expected, "CONTAINS:"):
		for _, part := range strings.Split(strings.TrimPrefix(expected, "CONTAINS:"), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.HasPrefix(part, "COUNT:") {
				if !countMatches(part, actual) {
					return false
				}
				continue
			}
			if !strings.Contains(actual, part) {
				return false
			}
		}
		return true
	case strings.HasPrefix(expected, "COUNT:"):
		return countMatches(expected, actual)
	default:
		return actual == expected
	}
}

func countMatches(spec, actual string) bool {
	rest := strings.TrimPrefix(spec, "COUNT:")
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		return false
	}
	token := rest[:idx]
	n, err := strconv.Atoi(strings.TrimSpace(rest[idx+1:]))
	if err != nil {
		return false
	}
	return strings.Count(actual, token) == n
}
