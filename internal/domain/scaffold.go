package domain

// ScaffoldRequest asks for starter code covering a single task.
type ScaffoldRequest struct {
	TaskDescription     string   `json:"task_description"`
	ProgrammingLanguage string   `json:"programming_language"`
	Concepts            []string `json:"concepts"`
	KnownLanguage       string   `json:"known_language,omitempty"`
	ExperienceLevel     string   `json:"experience_level,omitempty"`
}

// StarterCode is the per-task scaffold: a snippet with TODO markers and
// optional per-concept examples in the student's known language.
type StarterCode struct {
	CodeSnippet     string            `json:"code_snippet"`
	Instructions    string            `json:"instructions"`
	Todos           []string          `json:"todos"`
	ConceptExamples map[string]string `json:"concept_examples,omitempty"`
}

// FileScaffoldRequest asks for the scaffolding of one complete file,
// covering all of its tasks at once.
type FileScaffoldRequest struct {
	Filename            string             `json:"filename"`
	ProgrammingLanguage string             `json:"programming_language"`
	Tasks               []Task             `json:"tasks,omitempty"`
	Classes             []ClassGroup       `json:"classes,omitempty"`
	Template            *TemplateStructure `json:"template_structure,omitempty"`
	ExperienceLevel     string             `json:"experience_level,omitempty"`
}

// IsCodeFile reports whether the scaffold target is a source file rather
// than a data, config, or build file. Non-code files get literal content
// instead of commented stubs.
func (r *FileScaffoldRequest) IsCodeFile() bool {
	return !IsNonCodeFilename(r.Filename)
}

// FileScaffold is the whole-file scaffold: the file body plus TODO lists
// keyed by task id.
type FileScaffold struct {
	Filename    string              `json:"filename"`
	CodeSnippet string              `json:"code_snippet"`
	TaskTodos   map[string][]string `json:"task_todos"`
}
