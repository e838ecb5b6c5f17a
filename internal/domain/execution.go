package domain

import (
	"path/filepath"
	"strings"
)

// Submission is student code handed to an executor.
type Submission struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin,omitempty"`
}

// Execution is the outcome of running a submission once.
type Execution struct {
	Success       bool   `json:"success"`
	Output        string `json:"output"`
	Error         string `json:"error,omitempty"`
	ExitCode      int    `json:"exit_code"`
	ExecutionTime string `json:"execution_time"`
}

// TestRunResult is the outcome of one test case against a submission.
type TestRunResult struct {
	TestName       string `json:"test_name"`
	Passed         bool   `json:"passed"`
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Error          string `json:"error,omitempty"`
}

// TestRun aggregates a full run-with-tests invocation.
type TestRun struct {
	Execution
	TestResults []TestRunResult `json:"test_results"`
	TestsPassed int             `json:"tests_passed"`
	TestsFailed int             `json:"tests_failed"`
}

// nonCodeNames are build/config files recognized without an extension.
var nonCodeNames = map[string]bool{
	"makefile":   true,
	"dockerfile": true,
	".gitignore": true,
	".env":       true,
}

// nonCodeExtensions are data/config formats that get literal content
// scaffolds rather than commented code stubs.
var nonCodeExtensions = map[string]bool{
	".xml":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".ini":  true,
	".cfg":  true,
	".csv":  true,
	".txt":  true,
	".md":   true,
	".html": true,
	".css":  true,
	".sql":  true,
}

// IsNonCodeFilename reports whether a filename names a data, config, or
// build file rather than a source file.
func IsNonCodeFilename(filename string) bool {
	base := strings.ToLower(filepath.Base(filename))
	if nonCodeNames[base] {
		return true
	}
	return nonCodeExtensions[strings.ToLower(filepath.Ext(base))]
}
