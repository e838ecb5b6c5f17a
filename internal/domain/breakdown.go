package domain

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is the student-supplied input for a breakdown request.
type Assignment struct {
	AssignmentText  string `json:"assignment_text"`
	TargetLanguage  string `json:"target_language"`
	KnownLanguage   string `json:"known_language,omitempty"`
	ExperienceLevel string `json:"experience_level"`
}

// Task is a single unit of student work within a file or class.
type Task struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Dependencies  []int    `json:"dependencies"`
	EstimatedTime string   `json:"estimated_time"`
	Concepts      []string `json:"concepts"`
}

// ClassGroup groups tasks under one class for multi-class files.
type ClassGroup struct {
	ClassName        string   `json:"class_name"`
	Purpose          string   `json:"purpose"`
	MethodSignatures []string `json:"method_signatures,omitempty"`
	Tasks            []Task   `json:"tasks"`
}

// FileEntry describes one file the student must produce. Exactly one of
// Tasks or Classes is populated, never both.
type FileEntry struct {
	Filename string       `json:"filename"`
	Purpose  string       `json:"purpose"`
	Tasks    []Task       `json:"tasks,omitempty"`
	Classes  []ClassGroup `json:"classes,omitempty"`
}

// TemplateStructure captures names the assignment's template code fixes
// and that scaffolding must preserve verbatim.
type TemplateStructure struct {
	HasTemplate      bool     `json:"has_template"`
	VariableNames    []string `json:"variable_names,omitempty"`
	ClassNames       []string `json:"class_names,omitempty"`
	MethodSignatures []string `json:"method_signatures,omitempty"`
}

// TaskBreakdown is the structured result of parsing an assignment.
type TaskBreakdown struct {
	ID                 uuid.UUID          `json:"id"`
	Overview           string             `json:"overview"`
	TotalEstimatedTime string             `json:"total_estimated_time"`
	Template           *TemplateStructure `json:"template_structure,omitempty"`
	Files              []FileEntry        `json:"files"`
	Tests              []TestCase         `json:"tests,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// AllTasks returns every task in the breakdown, flat and class-nested alike.
func (b *TaskBreakdown) AllTasks() []Task {
	var tasks []Task
	for _, f := range b.Files {
		tasks = append(tasks, f.Tasks...)
		for _, c := range f.Classes {
			tasks = append(tasks, c.Tasks...)
		}
	}
	return tasks
}

// TaskCount returns the total number of tasks across all files and classes.
func (b *TaskBreakdown) TaskCount() int {
	return len(b.AllTasks())
}

// TestCase is one generated check for a breakdown. ExpectedOutput supports
// exact matching plus two prefix forms for non-deterministic programs:
// "CONTAINS:a,b,c" (all substrings present) and "COUNT:token:n" (token
// appears exactly n times).
type TestCase struct {
	TestName       string `json:"test_name"`
	FunctionName   string `json:"function_name"`
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	Description    string `json:"description"`
	TestType       string `json:"test_type"` // normal, edge, error
}
