package agent

import (
	"fmt"
	"strings"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// correctionSuffix is appended to a prompt after a failed attempt so the
// model tightens up its output format on the retry.
const correctionSuffix = "\n\nIMPORTANT: Previous attempt failed due to invalid JSON format. Ensure your response is ONLY valid JSON with no additional text."

// listCorrectionSuffix is the array-shaped variant for test generation.
const listCorrectionSuffix = "\n\nIMPORTANT: Previous attempt failed. Ensure your response is ONLY a valid JSON array starting with [ and ending with ]."

func parserPrompt(a domain.Assignment) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Parse this assignment into structured tasks for a student to complete.

Assignment: %s
Language: %s
Student Level: %s

YOUR JOB:
1. Identify ALL files mentioned (code files, data files, config files, etc.)
2. For each file, create tasks that the student needs to complete
3. Break complex implementations into 20-40 minute chunks
4. Extract template variables/method names if template code is provided

TASK BREAKDOWN STRATEGY:
- Code files: break into logical implementation tasks (setup, core logic, error handling)
- Data files: create tasks for populating them
- Config files: create tasks for configuration
- Multi-class files: group tasks by class using the classes array
- Simple files: use a flat tasks array
`, a.AssignmentText, a.TargetLanguage, a.ExperienceLevel)

	b.WriteString(`
OUTPUT STRUCTURE:
{
  "overview": "Brief 2-sentence summary of the assignment",
  "total_estimated_time": "X hours Y minutes",
  "template_structure": {
    "has_template": false,
    "variable_names": [],
    "class_names": [],
    "method_signatures": []
  },
  "files": [
    {
      "filename": "example.cs",
      "purpose": "Brief description",
      "classes": [
        {
          "class_name": "ClassName",
          "purpose": "What this class does",
          "method_signatures": ["Method1()", "Method2()"],
          "tasks": [
            {"id": 1, "title": "...", "description": "...", "dependencies": [], "estimated_time": "30 min", "concepts": ["..."]}
          ]
        }
      ],
      "tasks": null
    },
    {
      "filename": "utils.py",
      "purpose": "Brief description",
      "classes": null,
      "tasks": [
        {"id": 2, "title": "...", "description": "...", "dependencies": [1], "estimated_time": "20 min", "concepts": ["..."]}
      ]
    }
  ]
}

KEY RULES:
1. EVERY file needs tasks - code files AND data files AND config files
2. Multi-class files: use the "classes" array and set "tasks" to null
3. Simple files: use the "tasks" array and set "classes" to null
4. NEVER have both "classes" and "tasks" in the same file
5. Dependencies are INTEGERS (task ids), not strings: [1, 2] not ["Task 1"]
6. Task ids are unique across the whole assignment
7. Include ALL files mentioned in the assignment

Return ONLY valid JSON.`)

	return b.String()
}

func testGenPrompt(assignmentText string, files []domain.FileEntry, targetLanguage string) string {
	var summary strings.Builder
	for _, f := range files {
		fmt.Fprintf(&summary, "\n=== File: %s ===\n", f.Filename)
		for _, t := range f.Tasks {
			fmt.Fprintf(&summary, "Task %d: %s - %s\n", t.ID, t.Title, t.Description)
		}
		for _, c := range f.Classes {
			fmt.Fprintf(&summary, "\nClass: %s\n", c.ClassName)
			for _, t := range c.Tasks {
				fmt.Fprintf(&summary, "Task %d: %s - %s\n", t.ID, t.Title, t.Description)
			}
		}
	}

	return fmt.Sprintf(`You are a test case generator for programming assignments.

Assignment:
%s

Tasks Breakdown by File:
%s

Target Language: %s

Your task is to:
1. Identify the functions/methods that need testing
2. Generate 5-15 test cases covering normal, edge, and error scenarios
3. Infer function signatures from the assignment description
4. Create realistic input/output pairs appropriate for the target language

TEST CASE DISTRIBUTION:
- 60%% normal cases (typical usage)
- 30%% edge cases (boundary conditions, empty inputs, single elements)
- 10%% error cases (invalid inputs)

OUTPUT FORMAT (JSON array only):
[
  {
    "test_name": "test_add_two_positives",
    "function_name": "add",
    "input_data": "2, 3",
    "expected_output": "5",
    "description": "Adding two positive integers",
    "test_type": "normal"
  }
]

For non-deterministic output, expected_output may use "CONTAINS:a,b,c" (all
substrings must appear) or "COUNT:token:3" (token appears exactly 3 times).

Return ONLY a valid JSON array.`, assignmentText, summary.String(), targetLanguage)
}

func codegenPrompt(req domain.ScaffoldRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Generate starter code for this task. The student implements the logic; you provide structure and TODO markers.

Task: %s
Language: %s
Concepts: %s
`, req.TaskDescription, req.ProgrammingLanguage, strings.Join(req.Concepts, ", "))

	if req.KnownLanguage != "" {
		fmt.Fprintf(&b, "\nThe student already knows %s. For each unfamiliar concept, include a short example in concept_examples comparing the %s way to the %s way.\n",
			req.KnownLanguage, req.KnownLanguage, req.ProgrammingLanguage)
	}

	b.WriteString(`
RULES:
- Provide function/class skeletons with signatures, not implementations
- Mark every spot the student must fill with a TODO comment
- Do not solve the task

OUTPUT FORMAT:
{
  "code_snippet": "the starter code with TODO comments",
  "instructions": "short guidance on where to start",
  "todos": ["first thing to implement", "second thing"],
  "concept_examples": {"concept": "short example"}
}

Return ONLY valid JSON.`)

	return b.String()
}

func fileScaffoldPrompt(req domain.FileScaffoldRequest) string {
	var b strings.Builder

	if !req.IsCodeFile() {
		fmt.Fprintf(&b, `Generate the initial content for the data/config file '%s' in an assignment.

Tasks for this file:
%s
RULES:
- Produce literal file content, not code with comments
- Include realistic sample entries the student can extend
`, req.Filename, taskLines(req))
	} else {
		fmt.Fprintf(&b, `Generate the starter scaffold for the file '%s' in a %s assignment.

Tasks for this file:
%s
RULES:
- Provide skeletons for every class and function the tasks mention
- Mark each task's work with TODO comments referencing the task id
- Do not implement the logic
`, req.Filename, req.ProgrammingLanguage, taskLines(req))

		if req.Template != nil && req.Template.HasTemplate {
			fmt.Fprintf(&b, "- The assignment template fixes these names, keep them verbatim: variables %v, classes %v, methods %v\n",
				req.Template.VariableNames, req.Template.ClassNames, req.Template.MethodSignatures)
		}
	}

	b.WriteString(`
OUTPUT FORMAT:
{
  "filename": "` + req.Filename + `",
  "code_snippet": "the full file content",
  "task_todos": {"1": ["what task 1 must add here"], "2": ["..."]}
}

Return ONLY valid JSON.`)

	return b.String()
}

func taskLines(req domain.FileScaffoldRequest) string {
	var b strings.Builder
	for _, t := range req.Tasks {
		fmt.Fprintf(&b, "- Task %d: %s - %s\n", t.ID, t.Title, t.Description)
	}
	for _, c := range req.Classes {
		fmt.Fprintf(&b, "Class %s (%s):\n", c.ClassName, c.Purpose)
		for _, t := range c.Tasks {
			fmt.Fprintf(&b, "- Task %d: %s - %s\n", t.ID, t.Title, t.Description)
		}
	}
	return b.String()
}

func helperPrompt(req domain.HintRequest, level domain.HintLevel) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a live coding assistant helping a student who is stuck while programming.

Task: %s
Concepts: %s

Student's current code:
%s

Student's question: %s

Previous hints given:
%s
`, req.TaskDescription, strings.Join(req.Concepts, ", "), req.StudentCode, req.Question, previousHintLines(req.PreviousHints))

	switch strings.ToLower(req.ExperienceLevel) {
	case "beginner":
		b.WriteString("\nSTUDENT EXPERIENCE: Beginner. Use simple language, explain concepts thoroughly, break steps into small pieces.\n")
	case "advanced":
		b.WriteString("\nSTUDENT EXPERIENCE: Advanced. Technical terminology is fine, keep hints concise, focus on subtle issues.\n")
	default:
		b.WriteString("\nSTUDENT EXPERIENCE: Intermediate. Balance explanation and brevity.\n")
	}

	if req.KnownLanguage != "" && req.TargetLanguage != "" {
		fmt.Fprintf(&b, "\nThe student knows %s and is learning %s. You may bridge with %s patterns they already understand.\n",
			req.KnownLanguage, req.TargetLanguage, req.KnownLanguage)
	}

	switch level {
	case domain.HintGentle:
		b.WriteString(`
HINT LEVEL: gentle. Give a high-level conceptual hint.
- Point them in the right direction without giving away the answer
- Remind them of relevant concepts
- DO NOT show code examples yet
- DO NOT ask questions back to the student
`)
	case domain.HintModerate:
		b.WriteString(`
HINT LEVEL: moderate. Explain the approach in plain English or pseudocode.
- Show a SIMILAR example with different names and context
- Small snippets (3-5 lines) are fine, never the full solution
- DO NOT ask questions back to the student
`)
	default:
		b.WriteString(`
HINT LEVEL: strong. Get close to the solution but leave the implementation to them.
- Show a similar working example in a DIFFERENT context
- Explain the logic step by step
- DO NOT ask questions back to the student
`)
	}

	fmt.Fprintf(&b, `
OUTPUT FORMAT:
{
  "hint": "the hint text",
  "hint_type": "%s_hint",
  "example_code": "optional code example or null"
}

Return ONLY valid JSON.`, level)

	return b.String()
}

func previousHintLines(hints []string) string {
	if len(hints) == 0 {
		return "None"
	}
	var b strings.Builder
	for _, h := range hints {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	return b.String()
}
