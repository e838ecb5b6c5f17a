package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func mustDoc(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		t.Fatalf("test fixture is not valid JSON: %v", err)
	}
	return doc
}

func mustList(t *testing.T, raw string) []any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var list []any
	if err := dec.Decode(&list); err != nil {
		t.Fatalf("test fixture is not valid JSON: %v", err)
	}
	return list
}

const validBreakdown = `{
	"overview": "Build a hotel booking system",
	"total_estimated_time": "3 hours",
	"files": [
		{
			"filename": "main.py",
			"purpose": "entry point",
			"tasks": [
				{"id": 1, "title": "Parse args", "description": "d", "dependencies": [], "estimated_time": "10m", "concepts": ["argparse"]},
				{"id": 2, "title": "Wire up", "description": "d", "dependencies": [1], "estimated_time": "15m", "concepts": []}
			],
			"classes": null
		},
		{
			"filename": "hotel.py",
			"purpose": "domain model",
			"classes": [
				{
					"class_name": "Hotel",
					"purpose": "room inventory",
					"method_signatures": ["def book(self, room): ..."],
					"tasks": [
						{"id": 3, "title": "Book room", "description": "d", "dependencies": [2], "estimated_time": "20m", "concepts": ["classes"]}
					]
				}
			]
		}
	]
}`

func TestValidateBreakdown(t *testing.T) {
	v := NewValidator()

	doc := mustDoc(t, validBreakdown)
	if err := v.Validate(doc, AssignmentBreakdown); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateBreakdownDefaults(t *testing.T) {
	v := NewValidator()

	doc := mustDoc(t, `{"files": [{"filename": "a.py", "purpose": "p", "tasks": [
		{"id": 1, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}
	]}]}`)

	if err := v.Validate(doc, AssignmentBreakdown); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if doc["overview"] != DefaultOverview {
		t.Errorf("overview = %v, want default", doc["overview"])
	}
	if doc["total_estimated_time"] != DefaultTotalEstimatedTime {
		t.Errorf("total_estimated_time = %v, want default", doc["total_estimated_time"])
	}
}

func TestValidateBreakdownErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		field   string
		mention []string
	}{
		{
			name:  "missing files",
			raw:   `{"overview": "x", "total_estimated_time": "1h"}`,
			field: "files",
		},
		{
			name:  "null files",
			raw:   `{"files": null}`,
			field: "files",
		},
		{
			name:  "empty files",
			raw:   `{"files": []}`,
			field: "files",
		},
		{
			name:  "files not a list",
			raw:   `{"files": {"filename": "a.py"}}`,
			field: "files",
		},
		{
			name:  "file missing filename",
			raw:   `{"files": [{"purpose": "p", "tasks": [{"id": 1, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]}]}`,
			field: "filename",
		},
		{
			name:    "file missing purpose",
			raw:     `{"files": [{"filename": "a.py", "tasks": [{"id": 1, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]}]}`,
			field:   "purpose",
			mention: []string{"a.py", "purpose"},
		},
		{
			name:    "file with empty purpose",
			raw:     `{"files": [{"filename": "a.py", "purpose": "", "tasks": [{"id": 1, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]}]}`,
			field:   "purpose",
			mention: []string{"a.py"},
		},
		{
			name:    "both tasks and classes",
			raw:     `{"files": [{"filename": "Hotel.cs", "purpose": "p", "tasks": [{"id": 1}], "classes": [{"class_name": "Hotel"}]}]}`,
			field:   "tasks",
			mention: []string{"Hotel.cs", "both"},
		},
		{
			name:    "neither tasks nor classes",
			raw:     `{"files": [{"filename": "empty.py", "purpose": "p", "tasks": [], "classes": []}]}`,
			field:   "tasks",
			mention: []string{"empty.py", "neither"},
		},
		{
			name:    "task missing description",
			raw:     `{"files": [{"filename": "a.py", "purpose": "p", "tasks": [{"id": 1, "title": "t", "dependencies": [], "estimated_time": "5m", "concepts": []}]}]}`,
			field:   "description",
			mention: []string{"a.py", "description"},
		},
		{
			name:    "string task id",
			raw:     `{"files": [{"filename": "a.py", "purpose": "p", "tasks": [{"id": "1", "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]}]}`,
			field:   "id",
			mention: []string{"a.py"},
		},
		{
			name:    "float task id",
			raw:     `{"files": [{"filename": "a.py", "purpose": "p", "tasks": [{"id": 1.5, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]}]}`,
			field:   "id",
			mention: []string{"a.py"},
		},
		{
			name: "duplicate id across files",
			raw: `{"files": [
				{"filename": "a.py", "purpose": "p", "tasks": [{"id": 3, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]},
				{"filename": "b.py", "purpose": "p", "tasks": [{"id": 3, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]}
			]}`,
			field:   "id",
			mention: []string{"3", "b.py"},
		},
		{
			name: "duplicate id between flat task and class task",
			raw: `{"files": [
				{"filename": "a.py", "purpose": "p", "tasks": [{"id": 7, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]},
				{"filename": "Hotel.cs", "purpose": "p", "classes": [{"class_name": "Hotel", "tasks": [{"id": 7, "title": "t", "description": "d", "dependencies": [], "estimated_time": "5m", "concepts": []}]}]}
			]}`,
			field:   "id",
			mention: []string{"7", "Hotel.cs"},
		},
		{
			name:    "non-integer dependency",
			raw:     `{"files": [{"filename": "Hotel.cs", "purpose": "p", "tasks": [{"id": 7, "title": "t", "description": "d", "dependencies": ["one"], "estimated_time": "5m", "concepts": []}]}]}`,
			field:   "dependencies",
			mention: []string{"7", "Hotel.cs", "one"},
		},
		{
			name:    "numeral-as-string dependency",
			raw:     `{"files": [{"filename": "a.py", "purpose": "p", "tasks": [{"id": 1, "title": "t", "description": "d", "dependencies": ["1"], "estimated_time": "5m", "concepts": []}]}]}`,
			field:   "dependencies",
			mention: []string{"a.py"},
		},
		{
			name:    "class missing class_name",
			raw:     `{"files": [{"filename": "Hotel.cs", "purpose": "p", "classes": [{"tasks": [{"id": 1}]}]}]}`,
			field:   "class_name",
			mention: []string{"Hotel.cs"},
		},
		{
			name:    "class with empty task list",
			raw:     `{"files": [{"filename": "Hotel.cs", "purpose": "p", "classes": [{"class_name": "Hotel", "tasks": []}]}]}`,
			field:   "tasks",
			mention: []string{"Hotel"},
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(mustDoc(t, tt.raw), AssignmentBreakdown)
			if err == nil {
				t.Fatal("Validate() error = nil, want ValidationError")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %T, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			for _, m := range tt.mention {
				if !strings.Contains(verr.Message, m) {
					t.Errorf("message %q does not mention %q", verr.Message, m)
				}
			}
		})
	}
}

// Dangling dependencies are allowed: a task may depend on an id that is
// declared later or never declared at all.
func TestValidateBreakdownDanglingDependencies(t *testing.T) {
	doc := mustDoc(t, `{"files": [{"filename": "a.py", "purpose": "p", "tasks": [
		{"id": 1, "title": "t", "description": "d", "dependencies": [2, 99], "estimated_time": "5m", "concepts": []},
		{"id": 2, "title": "t", "description": "d", "dependencies": [2], "estimated_time": "5m", "concepts": []}
	]}]}`)

	if err := NewValidator().Validate(doc, AssignmentBreakdown); err != nil {
		t.Fatalf("Validate() error = %v, want dangling and self dependencies tolerated", err)
	}
}

func TestValidateFileScaffold(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		doc := mustDoc(t, `{"filename": "main.py", "code_snippet": "def main():\n    pass", "task_todos": {"1": ["implement main"]}, "instructions": "start here"}`)
		if err := v.Validate(doc, FileScaffold); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "missing filename", raw: `{"code_snippet": "x", "task_todos": {}}`, field: "filename"},
		{name: "missing code_snippet", raw: `{"filename": "a.py", "task_todos": {}}`, field: "code_snippet"},
		{name: "code_snippet not a string", raw: `{"filename": "a.py", "code_snippet": 7, "task_todos": {}}`, field: "code_snippet"},
		{name: "missing task_todos", raw: `{"filename": "a.py", "code_snippet": "x"}`, field: "task_todos"},
		{name: "task_todos not a map", raw: `{"filename": "a.py", "code_snippet": "x", "task_todos": ["loose"]}`, field: "task_todos"},
		{name: "non-string todo item", raw: `{"filename": "a.py", "code_snippet": "x", "task_todos": {"1": [2]}}`, field: "task_todos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(mustDoc(t, tt.raw), FileScaffold)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestValidateHint(t *testing.T) {
	v := NewValidator()

	t.Run("valid with example code", func(t *testing.T) {
		doc := mustDoc(t, `{"hint": "Think about the base case", "hint_type": "gentle", "example_code": "if n == 0: return 1"}`)
		if err := v.Validate(doc, Hint); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	t.Run("absent example code defaults to null", func(t *testing.T) {
		doc := mustDoc(t, `{"hint": "Check the loop bound", "hint_type": "moderate"}`)
		if err := v.Validate(doc, Hint); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if raw, present := doc["example_code"]; !present || raw != nil {
			t.Errorf("example_code = %v, want explicit null", raw)
		}
	})

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "missing hint", raw: `{"hint_type": "gentle"}`, field: "hint"},
		{name: "empty hint", raw: `{"hint": "", "hint_type": "gentle"}`, field: "hint"},
		{name: "missing hint_type", raw: `{"hint": "x"}`, field: "hint_type"},
		{name: "example_code not a string", raw: `{"hint": "x", "hint_type": "strong", "example_code": 3}`, field: "example_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(mustDoc(t, tt.raw), Hint)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

// The generation prompt allows the cases wrapped in an object under a
// "tests" key; Validate routes that form through the same per-case rules.
func TestValidateTestCaseDocument(t *testing.T) {
	v := NewValidator()

	t.Run("valid wrapped list", func(t *testing.T) {
		doc := mustDoc(t, `{"tests": [{"test_name": "adds", "function_name": "add", "expected_output": "3"}]}`)
		if err := v.Validate(doc, TestCaseList); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "missing tests key", raw: `{"cases": []}`, field: "tests"},
		{name: "null tests", raw: `{"tests": null}`, field: "tests"},
		{name: "tests not a list", raw: `{"tests": {"test_name": "t"}}`, field: "tests"},
		{name: "bad case inside", raw: `{"tests": [{"function_name": "f", "expected_output": "1"}]}`, field: "test_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(mustDoc(t, tt.raw), TestCaseList)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestValidateTestCases(t *testing.T) {
	v := NewValidator()

	t.Run("valid with defaults filled", func(t *testing.T) {
		list := mustList(t, `[{"test_name": "adds", "function_name": "add", "expected_output": "3"}]`)
		if err := v.ValidateTestCases(list); err != nil {
			t.Fatalf("ValidateTestCases() error = %v", err)
		}
		tc := list[0].(map[string]any)
		if tc["input_data"] != "" {
			t.Errorf("input_data = %v, want empty default", tc["input_data"])
		}
		if tc["test_type"] != DefaultTestType {
			t.Errorf("test_type = %v, want %q", tc["test_type"], DefaultTestType)
		}
	})

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "not an object", raw: `["loose string"]`, field: ""},
		{name: "missing test_name", raw: `[{"function_name": "f", "expected_output": "1"}]`, field: "test_name"},
		{name: "missing function_name", raw: `[{"test_name": "t", "expected_output": "1"}]`, field: "function_name"},
		{name: "missing expected_output", raw: `[{"test_name": "t", "function_name": "f"}]`, field: "expected_output"},
		{name: "numeric expected_output", raw: `[{"test_name": "t", "function_name": "f", "expected_output": 3}]`, field: "expected_output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateTestCases(mustList(t, tt.raw))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}
