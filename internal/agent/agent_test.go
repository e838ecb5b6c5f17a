package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/llm"
)

// fakeProvider replays scripted replies and records every prompt.
type fakeProvider struct {
	replies []string
	prompts []string
	err     error
	finish  string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("fake provider: no scripted reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]

	finish := f.finish
	if finish == "" {
		finish = "stop"
	}
	return &llm.Response{Content: reply, FinishReason: finish}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const breakdownReply = "```json\n" + `{
	"overview": "Implement a stack",
	"total_estimated_time": "1 hour",
	"files": [
		{"filename": "stack.py", "purpose": "the stack", "classes": null, "tasks": [
			{"id": 1, "title": "Implement push", "description": "d", "dependencies": [], "estimated_time": "20 min", "concepts": ["lists"]},
			{"id": 2, "title": "Implement pop", "description": "d", "dependencies": [1], "estimated_time": "20 min", "concepts": ["lists"]}
		]}
	]
}` + "\n```"

const testsReply = `[
	{"test_name": "test_push_then_pop", "function_name": "pop", "input_data": "", "expected_output": "5", "description": "round trip", "test_type": "normal"},
	{"test_name": "test_pop_empty", "function_name": "pop", "expected_output": "CONTAINS:error", "test_type": "error"},
	{"bogus": true}
]`

func testAssignment() domain.Assignment {
	return domain.Assignment{
		AssignmentText:  "Implement a stack with push and pop.",
		TargetLanguage:  "python",
		ExperienceLevel: "beginner",
	}
}

func TestParseAssignment(t *testing.T) {
	p := &fakeProvider{replies: []string{breakdownReply, testsReply}}
	a := NewParserAgent(p, testLogger())

	breakdown, err := a.ParseAssignment(context.Background(), testAssignment())
	if err != nil {
		t.Fatalf("ParseAssignment() error = %v", err)
	}

	if len(breakdown.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(breakdown.Files))
	}
	if got := breakdown.TaskCount(); got != 2 {
		t.Errorf("TaskCount() = %d, want 2", got)
	}
	if breakdown.Files[0].Tasks[1].Dependencies[0] != 1 {
		t.Errorf("dependencies = %v", breakdown.Files[0].Tasks[1].Dependencies)
	}
	// The invalid third case is skipped, not fatal.
	if len(breakdown.Tests) != 2 {
		t.Errorf("tests = %d, want 2", len(breakdown.Tests))
	}
	if breakdown.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("breakdown id not assigned")
	}
	if breakdown.CreatedAt.IsZero() {
		t.Error("created_at not assigned")
	}
}

func TestParseAssignmentRetriesWithCorrection(t *testing.T) {
	p := &fakeProvider{replies: []string{"I cannot help with that.", breakdownReply, testsReply}}
	a := NewParserAgent(p, testLogger())

	if _, err := a.ParseAssignment(context.Background(), testAssignment()); err != nil {
		t.Fatalf("ParseAssignment() error = %v", err)
	}

	if len(p.prompts) != 3 {
		t.Fatalf("prompts = %d, want 3 (failed parse, retry, tests)", len(p.prompts))
	}
	if strings.Contains(p.prompts[0], "IMPORTANT: Previous attempt failed") {
		t.Error("first prompt already carries the correction suffix")
	}
	if !strings.Contains(p.prompts[1], "IMPORTANT: Previous attempt failed") {
		t.Error("retry prompt is missing the correction suffix")
	}
}

func TestParseAssignmentExhaustsRetries(t *testing.T) {
	p := &fakeProvider{replies: []string{"nope", "still nope", "nope again"}}
	a := NewParserAgent(p, testLogger())

	_, err := a.ParseAssignment(context.Background(), testAssignment())
	if err == nil {
		t.Fatal("ParseAssignment() error = nil, want retry exhaustion")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v, want attempt count", err)
	}
}

func TestParseAssignmentRejectsUnsupportedLanguage(t *testing.T) {
	p := &fakeProvider{}
	a := NewParserAgent(p, testLogger())

	assignment := testAssignment()
	assignment.TargetLanguage = "cobol"

	if _, err := a.ParseAssignment(context.Background(), assignment); !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Fatalf("error = %v, want ErrUnsupportedLanguage", err)
	}
	if len(p.prompts) != 0 {
		t.Error("provider called despite invalid input")
	}
}

func TestGenerateTestCasesFailSoft(t *testing.T) {
	p := &fakeProvider{replies: []string{"garbage", "more garbage", "worse"}}
	a := NewParserAgent(p, testLogger())

	cases := a.GenerateTestCases(context.Background(), "text", nil, "python")
	if len(cases) != 0 {
		t.Errorf("cases = %v, want none after exhausted retries", cases)
	}
}

func TestGenerateStarterCode(t *testing.T) {
	reply := `{"code_snippet": "def push(self, item):\n    # TODO\n    pass", "instructions": "Start with push.", "todos": ["append the item"], "concept_examples": {"lists": "x = []"}}`
	p := &fakeProvider{replies: []string{reply}}
	a := NewCodegenAgent(p, testLogger())

	starter, err := a.GenerateStarterCode(context.Background(), domain.ScaffoldRequest{
		TaskDescription:     "Implement push",
		ProgrammingLanguage: "python",
		Concepts:            []string{"lists"},
	})
	if err != nil {
		t.Fatalf("GenerateStarterCode() error = %v", err)
	}
	if !strings.Contains(starter.CodeSnippet, "TODO") {
		t.Errorf("CodeSnippet = %q", starter.CodeSnippet)
	}
	if len(starter.Todos) != 1 {
		t.Errorf("Todos = %v", starter.Todos)
	}
	if starter.ConceptExamples["lists"] == "" {
		t.Errorf("ConceptExamples = %v", starter.ConceptExamples)
	}
}

func TestGenerateStarterCodeRetriesOnMissingField(t *testing.T) {
	p := &fakeProvider{replies: []string{
		`{"code_snippet": "x", "instructions": "y"}`,
		`{"code_snippet": "x", "instructions": "y", "todos": ["z"]}`,
	}}
	a := NewCodegenAgent(p, testLogger())

	starter, err := a.GenerateStarterCode(context.Background(), domain.ScaffoldRequest{
		TaskDescription:     "task",
		ProgrammingLanguage: "python",
	})
	if err != nil {
		t.Fatalf("GenerateStarterCode() error = %v", err)
	}
	if len(p.prompts) != 2 {
		t.Errorf("prompts = %d, want 2", len(p.prompts))
	}
	if len(starter.Todos) != 1 {
		t.Errorf("Todos = %v", starter.Todos)
	}
}

func scaffoldRequest() domain.FileScaffoldRequest {
	return domain.FileScaffoldRequest{
		Filename:            "stack.py",
		ProgrammingLanguage: "python",
		Tasks: []domain.Task{
			{ID: 1, Title: "Implement push"},
			{ID: 2, Title: "Implement pop"},
		},
	}
}

func TestGenerateFileScaffold(t *testing.T) {
	reply := `{"filename": "stack.py", "code_snippet": "class Stack:\n    pass", "task_todos": {"1": ["add push"], "2": ["add pop"]}}`
	p := &fakeProvider{replies: []string{reply}}
	a := NewCodegenAgent(p, testLogger())

	scaffold, err := a.GenerateFileScaffold(context.Background(), scaffoldRequest())
	if err != nil {
		t.Fatalf("GenerateFileScaffold() error = %v", err)
	}
	if scaffold.Filename != "stack.py" {
		t.Errorf("Filename = %q", scaffold.Filename)
	}
	if len(scaffold.TaskTodos["1"]) != 1 {
		t.Errorf("TaskTodos = %v", scaffold.TaskTodos)
	}
}

// A reply cut off inside the code snippet still yields a scaffold: the
// string is closed, delimiters balanced, and the TODO map injected empty.
func TestGenerateFileScaffoldTruncatedReply(t *testing.T) {
	reply := `{"filename": "stack.py", "code_snippet": "class Stack:
    def __init__(self):`
	p := &fakeProvider{replies: []string{reply}, finish: llm.FinishReasonMaxTokens}
	a := NewCodegenAgent(p, testLogger())

	scaffold, err := a.GenerateFileScaffold(context.Background(), scaffoldRequest())
	if err != nil {
		t.Fatalf("GenerateFileScaffold() error = %v", err)
	}
	if !strings.Contains(scaffold.CodeSnippet, "class Stack:") {
		t.Errorf("CodeSnippet = %q", scaffold.CodeSnippet)
	}
	if scaffold.TaskTodos == nil || len(scaffold.TaskTodos) != 0 {
		t.Errorf("TaskTodos = %v, want injected empty map", scaffold.TaskTodos)
	}
}

func TestGenerateFileScaffoldFallsBack(t *testing.T) {
	p := &fakeProvider{replies: []string{"no", "no", "no"}}
	a := NewCodegenAgent(p, testLogger())

	scaffold, err := a.GenerateFileScaffold(context.Background(), scaffoldRequest())
	if err != nil {
		t.Fatalf("GenerateFileScaffold() error = %v", err)
	}
	if !strings.Contains(scaffold.CodeSnippet, "# TODO (task 1): Implement push") {
		t.Errorf("CodeSnippet = %q, want generic python TODOs", scaffold.CodeSnippet)
	}
	if got := scaffold.TaskTodos["2"]; len(got) != 1 || !strings.Contains(got[0], "Implement pop") {
		t.Errorf("TaskTodos[2] = %v", got)
	}
}

func TestProvideHintLevels(t *testing.T) {
	tests := []struct {
		helpCount int
		level     string
	}{
		{helpCount: 0, level: "HINT LEVEL: gentle"},
		{helpCount: 1, level: "HINT LEVEL: moderate"},
		{helpCount: 5, level: "HINT LEVEL: strong"},
	}

	for _, tt := range tests {
		p := &fakeProvider{replies: []string{`{"hint": "Think about the empty case.", "hint_type": "gentle_hint"}`}}
		a := NewHelperAgent(p, testLogger())

		hint, err := a.ProvideHint(context.Background(), domain.HintRequest{
			TaskDescription: "Implement pop",
			Question:        "Why does my pop fail?",
			StudentCode:     "def pop(self): return self.items[-1]",
			HelpCount:       tt.helpCount,
		})
		if err != nil {
			t.Fatalf("ProvideHint(helpCount=%d) error = %v", tt.helpCount, err)
		}
		if hint.Hint == "" {
			t.Error("empty hint")
		}
		if !strings.Contains(p.prompts[0], tt.level) {
			t.Errorf("helpCount=%d prompt missing %q", tt.helpCount, tt.level)
		}
	}
}

func TestProvideHintRejectsBlockedCode(t *testing.T) {
	p := &fakeProvider{}
	a := NewHelperAgent(p, testLogger())

	_, err := a.ProvideHint(context.Background(), domain.HintRequest{
		Question:    "help",
		StudentCode: "import os; os.system('ls')",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
	if len(p.prompts) != 0 {
		t.Error("provider called despite blocked content")
	}
}
