package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/agent"
	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/runner"
	"github.com/scaffyhq/scaffy/internal/storage"
)

// Server wraps the MCP server with Scaffy functionality
type Server struct {
	mcpServer *server.Server
	parser    *agent.ParserAgent
	codegen   *agent.CodegenAgent
	helper    *agent.HelperAgent
	runner    *runner.Service
	store     storage.Store
}

// Config contains configuration for the MCP server
type Config struct {
	Parser  *agent.ParserAgent
	Codegen *agent.CodegenAgent
	Helper  *agent.HelperAgent
	Runner  *runner.Service
	Store   storage.Store
}

// NewServer creates a new MCP server for Scaffy
func NewServer(cfg Config) *Server {
	s := &Server{
		parser:  cfg.Parser,
		codegen: cfg.Codegen,
		helper:  cfg.Helper,
		runner:  cfg.Runner,
		store:   cfg.Store,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "scaffy",
		Version: "0.1.0",
	}, server.WithInstructions(`
Scaffy turns programming assignments into guided task breakdowns.
It scaffolds starter code with TODO markers, gives progressive hints,
and runs student code against generated test cases.

Available tools:
- scaffy_breakdown: Parse an assignment into a stored task breakdown
- scaffy_scaffold: Scaffold one file of a breakdown with TODO markers
- scaffy_starter: Generate starter code for a single task description
- scaffy_hint: Get a hint for a task. Hints escalate per task:
  first ask is gentle, second moderate, third and beyond strong.
- scaffy_run: Run code, optionally against a breakdown's test cases
`))

	// Register tools
	s.registerTools()

	return s
}

// registerTools registers all Scaffy MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("scaffy_breakdown").
		Description("Parse a programming assignment into a stored task breakdown").
		Handler(s.handleBreakdown)

	s.mcpServer.Tool("scaffy_scaffold").
		Description("Scaffold one file of a stored breakdown with TODO markers").
		Handler(s.handleScaffold)

	s.mcpServer.Tool("scaffy_starter").
		Description("Generate starter code for a single task description").
		Handler(s.handleStarter)

	s.mcpServer.Tool("scaffy_hint").
		Description("Get a hint for a task. Hints escalate with repeated asks.").
		Handler(s.handleHint)

	s.mcpServer.Tool("scaffy_run").
		Description("Run code, optionally against a breakdown's test cases.").
		Handler(s.handleRun)
}

// Input/Output types for tools

type BreakdownInput struct {
	AssignmentText  string `json:"assignment_text" jsonschema:"description=The full assignment text to break down"`
	TargetLanguage  string `json:"target_language" jsonschema:"description=Language the assignment must be solved in"`
	KnownLanguage   string `json:"known_language,omitempty" jsonschema:"description=Language the student already knows"`
	ExperienceLevel string `json:"experience_level,omitempty" jsonschema:"description=Student experience: beginner or intermediate or advanced"`
}

type BreakdownFile struct {
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
	TaskCount int    `json:"task_count"`
}

type BreakdownOutput struct {
	BreakdownID string          `json:"breakdown_id"`
	Overview    string          `json:"overview"`
	Files       []BreakdownFile `json:"files"`
	TaskCount   int             `json:"task_count"`
	TestCount   int             `json:"test_count"`
	Message     string          `json:"message"`
}

type ScaffoldInput struct {
	BreakdownID         string `json:"breakdown_id" jsonschema:"description=Breakdown ID from scaffy_breakdown"`
	Filename            string `json:"filename" jsonschema:"description=File of the breakdown to scaffold"`
	ProgrammingLanguage string `json:"programming_language" jsonschema:"description=Language for the scaffold"`
	ExperienceLevel     string `json:"experience_level,omitempty" jsonschema:"description=Student experience level"`
}

type ScaffoldOutput struct {
	Filename    string              `json:"filename"`
	CodeSnippet string              `json:"code_snippet"`
	TaskTodos   map[string][]string `json:"task_todos,omitempty"`
}

type StarterInput struct {
	TaskDescription     string   `json:"task_description" jsonschema:"description=The task to scaffold"`
	ProgrammingLanguage string   `json:"programming_language" jsonschema:"description=Language for the starter code"`
	Concepts            []string `json:"concepts,omitempty" jsonschema:"description=Concepts the task exercises"`
	KnownLanguage       string   `json:"known_language,omitempty" jsonschema:"description=Language the student already knows"`
	ExperienceLevel     string   `json:"experience_level,omitempty" jsonschema:"description=Student experience level"`
}

type StarterOutput struct {
	CodeSnippet     string            `json:"code_snippet"`
	Instructions    string            `json:"instructions"`
	Todos           []string          `json:"todos"`
	ConceptExamples map[string]string `json:"concept_examples,omitempty"`
}

type HintInput struct {
	BreakdownID     string `json:"breakdown_id" jsonschema:"description=Breakdown ID from scaffy_breakdown"`
	TaskID          int    `json:"task_id" jsonschema:"description=Task number within the breakdown"`
	Question        string `json:"question,omitempty" jsonschema:"description=What the student is asking"`
	StudentCode     string `json:"student_code,omitempty" jsonschema:"description=The student's current code"`
	TargetLanguage  string `json:"target_language,omitempty" jsonschema:"description=Language the student is working in"`
	ExperienceLevel string `json:"experience_level,omitempty" jsonschema:"description=Student experience level"`
}

type HintOutput struct {
	Hint        string `json:"hint"`
	HintType    string `json:"hint_type"`
	ExampleCode string `json:"example_code,omitempty"`
	HelpCount   int    `json:"help_count"`
}

type RunInput struct {
	Code        string `json:"code" jsonschema:"description=The code to run"`
	Language    string `json:"language" jsonschema:"description=Language of the code"`
	Stdin       string `json:"stdin,omitempty" jsonschema:"description=Standard input for the program"`
	BreakdownID string `json:"breakdown_id,omitempty" jsonschema:"description=Run against this breakdown's test cases"`
}

type RunOutput struct {
	Success     bool   `json:"success"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	TestsPassed int    `json:"tests_passed,omitempty"`
	TestsFailed int    `json:"tests_failed,omitempty"`
	Summary     string `json:"summary"`
}

// Tool handlers

func (s *Server) handleBreakdown(ctx context.Context, input BreakdownInput) (BreakdownOutput, error) {
	breakdown, err := s.parser.ParseAssignment(ctx, domain.Assignment{
		AssignmentText:  input.AssignmentText,
		TargetLanguage:  input.TargetLanguage,
		KnownLanguage:   input.KnownLanguage,
		ExperienceLevel: input.ExperienceLevel,
	})
	if err != nil {
		return BreakdownOutput{}, fmt.Errorf("failed to parse assignment: %w", err)
	}

	if err := s.store.SaveBreakdown(ctx, breakdown); err != nil {
		return BreakdownOutput{}, fmt.Errorf("failed to store breakdown: %w", err)
	}

	files := make([]BreakdownFile, 0, len(breakdown.Files))
	for _, f := range breakdown.Files {
		count := len(f.Tasks)
		for _, c := range f.Classes {
			count += len(c.Tasks)
		}
		files = append(files, BreakdownFile{
			Filename:  f.Filename,
			Purpose:   f.Purpose,
			TaskCount: count,
		})
	}

	return BreakdownOutput{
		BreakdownID: breakdown.ID.String(),
		Overview:    breakdown.Overview,
		Files:       files,
		TaskCount:   breakdown.TaskCount(),
		TestCount:   len(breakdown.Tests),
		Message: fmt.Sprintf("Breakdown created: %d tasks across %d files. Estimated time: %s",
			breakdown.TaskCount(), len(breakdown.Files), breakdown.TotalEstimatedTime),
	}, nil
}

func (s *Server) handleScaffold(ctx context.Context, input ScaffoldInput) (ScaffoldOutput, error) {
	breakdown, err := s.loadBreakdown(ctx, input.BreakdownID)
	if err != nil {
		return ScaffoldOutput{}, err
	}

	var entry *domain.FileEntry
	for i := range breakdown.Files {
		if breakdown.Files[i].Filename == input.Filename {
			entry = &breakdown.Files[i]
			break
		}
	}
	if entry == nil {
		return ScaffoldOutput{}, fmt.Errorf("breakdown has no file named %q", input.Filename)
	}

	scaffold, err := s.codegen.GenerateFileScaffold(ctx, domain.FileScaffoldRequest{
		Filename:            entry.Filename,
		ProgrammingLanguage: input.ProgrammingLanguage,
		Tasks:               entry.Tasks,
		Classes:             entry.Classes,
		Template:            breakdown.Template,
		ExperienceLevel:     input.ExperienceLevel,
	})
	if err != nil {
		return ScaffoldOutput{}, fmt.Errorf("failed to scaffold file: %w", err)
	}

	return ScaffoldOutput{
		Filename:    scaffold.Filename,
		CodeSnippet: scaffold.CodeSnippet,
		TaskTodos:   scaffold.TaskTodos,
	}, nil
}

func (s *Server) handleStarter(ctx context.Context, input StarterInput) (StarterOutput, error) {
	starter, err := s.codegen.GenerateStarterCode(ctx, domain.ScaffoldRequest{
		TaskDescription:     input.TaskDescription,
		ProgrammingLanguage: input.ProgrammingLanguage,
		Concepts:            input.Concepts,
		KnownLanguage:       input.KnownLanguage,
		ExperienceLevel:     input.ExperienceLevel,
	})
	if err != nil {
		return StarterOutput{}, fmt.Errorf("failed to generate starter code: %w", err)
	}

	return StarterOutput{
		CodeSnippet:     starter.CodeSnippet,
		Instructions:    starter.Instructions,
		Todos:           starter.Todos,
		ConceptExamples: starter.ConceptExamples,
	}, nil
}

func (s *Server) handleHint(ctx context.Context, input HintInput) (HintOutput, error) {
	breakdown, err := s.loadBreakdown(ctx, input.BreakdownID)
	if err != nil {
		return HintOutput{}, err
	}

	var task *domain.Task
	for _, t := range breakdown.AllTasks() {
		if t.ID == input.TaskID {
			task = &t
			break
		}
	}
	if task == nil {
		return HintOutput{}, fmt.Errorf("breakdown has no task %d", input.TaskID)
	}

	// Escalation state lives server-side per (breakdown, task) pair.
	sess, err := s.store.GetOrCreateHintSession(ctx, breakdown.ID, input.TaskID)
	if err != nil {
		return HintOutput{}, fmt.Errorf("failed to load hint session: %w", err)
	}

	hint, err := s.helper.ProvideHint(ctx, domain.HintRequest{
		SessionID:       sess.ID,
		TaskDescription: task.Description,
		Concepts:        task.Concepts,
		StudentCode:     input.StudentCode,
		Question:        input.Question,
		PreviousHints:   sess.Hints,
		HelpCount:       sess.HelpCount,
		TargetLanguage:  input.TargetLanguage,
		ExperienceLevel: input.ExperienceLevel,
	})
	if err != nil {
		return HintOutput{}, fmt.Errorf("failed to generate hint: %w", err)
	}

	helpCount := sess.HelpCount
	if updated, err := s.store.RecordHint(ctx, sess.ID, hint.Hint); err == nil {
		helpCount = updated.HelpCount
	}

	return HintOutput{
		Hint:        hint.Hint,
		HintType:    hint.HintType,
		ExampleCode: hint.ExampleCode,
		HelpCount:   helpCount,
	}, nil
}

func (s *Server) handleRun(ctx context.Context, input RunInput) (RunOutput, error) {
	sub := domain.Submission{
		Code:     input.Code,
		Language: input.Language,
		Stdin:    input.Stdin,
	}

	if input.BreakdownID == "" {
		exec, err := s.runner.Run(ctx, sub)
		if err != nil {
			return RunOutput{}, fmt.Errorf("run failed: %w", err)
		}
		summary := "Run: ✓"
		if !exec.Success {
			summary = "Run: ✗ (exit " + strconv.Itoa(exec.ExitCode) + ")"
		}
		return RunOutput{
			Success: exec.Success,
			Output:  exec.Output,
			Error:   exec.Error,
			Summary: summary,
		}, nil
	}

	breakdown, err := s.loadBreakdown(ctx, input.BreakdownID)
	if err != nil {
		return RunOutput{}, err
	}
	if len(breakdown.Tests) == 0 {
		return RunOutput{}, fmt.Errorf("breakdown has no test cases yet; they may still be generating")
	}

	run, err := s.runner.RunWithTests(ctx, sub, breakdown.Tests)
	if err != nil {
		return RunOutput{}, fmt.Errorf("run failed: %w", err)
	}

	var summary []string
	for _, res := range run.TestResults {
		if res.Passed {
			summary = append(summary, res.TestName+": ✓")
		} else {
			summary = append(summary, res.TestName+": ✗")
		}
	}

	return RunOutput{
		Success:     run.Success,
		Output:      run.Output,
		Error:       run.Error,
		TestsPassed: run.TestsPassed,
		TestsFailed: run.TestsFailed,
		Summary:     strings.Join(summary, " | "),
	}, nil
}

func (s *Server) loadBreakdown(ctx context.Context, id string) (*domain.TaskBreakdown, error) {
	breakdownID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid breakdown id %q", id)
	}
	breakdown, err := s.store.GetBreakdown(ctx, breakdownID)
	if err != nil {
		return nil, fmt.Errorf("breakdown not found: %w", err)
	}
	return breakdown, nil
}

// ServeStdio starts the MCP server on stdio (for editor integration)
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
