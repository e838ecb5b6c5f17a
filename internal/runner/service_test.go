package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// fakeExecutor returns canned executions keyed by a substring of the code.
type fakeExecutor struct {
	outputs map[string]*domain.Execution
	runs    []domain.Submission
}

func (f *fakeExecutor) Run(ctx context.Context, sub domain.Submission) (*domain.Execution, error) {
	f.runs = append(f.runs, sub)
	for key, exec := range f.outputs {
		if strings.Contains(sub.Code, key) {
			return exec, nil
		}
	}
	return &domain.Execution{Success: true, Output: "", ExitCode: 0}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOutputMatches(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{name: "exact match", expected: "5", actual: "5", want: true},
		{name: "exact mismatch", expected: "5", actual: "6", want: false},
		{name: "exact with padding", expected: " 5 ", actual: "5", want: true},
		{name: "contains all", expected: "CONTAINS:Producer,Consumer", actual: "Producer started\nConsumer done", want: true},
		{name: "contains missing one", expected: "CONTAINS:Producer,Consumer", actual: "Producer started", want: false},
		{name: "count exact", expected: "COUNT:Thread:3", actual: "Thread Thread Thread", want: true},
		{name: "count wrong", expected: "COUNT:Thread:3", actual: "Thread Thread", want: false},
		{name: "contains with embedded count", expected: "CONTAINS:started,COUNT:Thread:2", actual: "Thread started Thread", want: true},
		{name: "count malformed", expected: "COUNT:Thread", actual: "Thread", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputMatches(tt.expected, tt.actual); got != tt.want {
				t.Errorf("outputMatches(%q, %q) = %v, want %v", tt.expected, tt.actual, got, tt.want)
			}
		})
	}
}

func TestTestHarness(t *testing.T) {
	tc := domain.TestCase{FunctionName: "add", InputData: "2, 3"}

	py := testHarness("def add(a, b): return a + b", "python", tc)
	if !strings.Contains(py, "result = add(2, 3)") || !strings.Contains(py, "print(result)") {
		t.Errorf("python harness = %q", py)
	}

	js := testHarness("function add(a, b) { return a + b }", "javascript", tc)
	if !strings.Contains(js, "const result = add(2, 3);") {
		t.Errorf("javascript harness = %q", js)
	}

	other := testHarness("int add(int a, int b);", "c++", tc)
	if !strings.HasSuffix(other, "add(2, 3);") {
		t.Errorf("generic harness = %q", other)
	}
}

func TestRunWithTests(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]*domain.Execution{
		"add(2, 3)":  {Success: true, Output: "5\n", ExitCode: 0},
		"add(-1, 1)": {Success: true, Output: "3\n", ExitCode: 0},
	}}
	s := NewService(exec, testLogger())

	run, err := s.RunWithTests(context.Background(), domain.Submission{
		Code:     "def add(a, b): return a + b",
		Language: "python",
	}, []domain.TestCase{
		{TestName: "adds positives", FunctionName: "add", InputData: "2, 3", ExpectedOutput: "5"},
		{TestName: "adds opposites", FunctionName: "add", InputData: "-1, 1", ExpectedOutput: "0"},
	})
	if err != nil {
		t.Fatalf("RunWithTests() error = %v", err)
	}

	if run.TestsPassed != 1 || run.TestsFailed != 1 {
		t.Errorf("passed/failed = %d/%d, want 1/1", run.TestsPassed, run.TestsFailed)
	}
	if run.Success {
		t.Error("run reported success with a failing test")
	}
	if !run.TestResults[0].Passed || run.TestResults[1].Passed {
		t.Errorf("results = %+v", run.TestResults)
	}
	if run.TestResults[1].ActualOutput != "3" {
		t.Errorf("ActualOutput = %q, want trimmed output", run.TestResults[1].ActualOutput)
	}
	// Two harness runs plus the plain run.
	if len(exec.runs) != 3 {
		t.Errorf("executor runs = %d, want 3", len(exec.runs))
	}
}

func TestRunWithTestsFailedHarness(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]*domain.Execution{
		"add(2, 3)": {Success: false, Output: "", Error: "NameError: add is not defined", ExitCode: 1},
	}}
	s := NewService(exec, testLogger())

	run, err := s.RunWithTests(context.Background(), domain.Submission{
		Code:     "x = 1",
		Language: "python",
	}, []domain.TestCase{
		{TestName: "adds", FunctionName: "add", InputData: "2, 3", ExpectedOutput: "5"},
	})
	if err != nil {
		t.Fatalf("RunWithTests() error = %v", err)
	}
	if run.TestsFailed != 1 {
		t.Errorf("TestsFailed = %d, want 1", run.TestsFailed)
	}
	if run.TestResults[0].Error == "" {
		t.Error("harness error not propagated to the result")
	}
}

func TestRunWithTestsCap(t *testing.T) {
	s := NewService(&fakeExecutor{}, testLogger())

	cases := make([]domain.TestCase, 21)
	_, err := s.RunWithTests(context.Background(), domain.Submission{Code: "x = 1", Language: "python"}, cases)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestRunRejectsBlockedCode(t *testing.T) {
	s := NewService(&fakeExecutor{}, testLogger())

	_, err := s.Run(context.Background(), domain.Submission{
		Code:     "import subprocess; subprocess.call(['ls'])",
		Language: "python",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}
