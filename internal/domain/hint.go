package domain

import (
	"time"

	"github.com/google/uuid"
)

// HintRequest carries everything the helper needs to produce one hint.
// HelpCount is resolved server-side from the hint session, not trusted
// from the client.
type HintRequest struct {
	SessionID       uuid.UUID `json:"session_id,omitempty"`
	TaskDescription string    `json:"task_description"`
	Concepts        []string  `json:"concepts"`
	StudentCode     string    `json:"student_code"`
	Question        string    `json:"question"`
	PreviousHints   []string  `json:"previous_hints,omitempty"`
	HelpCount       int       `json:"help_count,omitempty"`
	KnownLanguage   string    `json:"known_language,omitempty"`
	TargetLanguage  string    `json:"target_language,omitempty"`
	ExperienceLevel string    `json:"experience_level,omitempty"`
}

// HintLevel is the progressive escalation tier for a hint.
type HintLevel string

const (
	HintGentle   HintLevel = "gentle"
	HintModerate HintLevel = "moderate"
	HintStrong   HintLevel = "strong"
)

// LevelForHelpCount maps the number of prior help requests on a task to a
// hint level: first ask is gentle, second moderate, third and beyond strong.
func LevelForHelpCount(count int) HintLevel {
	switch {
	case count <= 0:
		return HintGentle
	case count == 1:
		return HintModerate
	default:
		return HintStrong
	}
}

// Hint is one contextual hint returned to the student.
type Hint struct {
	Hint        string `json:"hint"`
	HintType    string `json:"hint_type"` // gentle_hint, moderate_hint, strong_hint
	ExampleCode string `json:"example_code,omitempty"`
}

// HintSession tracks per-task help history so hint escalation survives
// page reloads. One session per (breakdown, task) pair.
type HintSession struct {
	ID          uuid.UUID `json:"id"`
	BreakdownID uuid.UUID `json:"breakdown_id"`
	TaskID      int       `json:"task_id"`
	HelpCount   int       `json:"help_count"`
	Hints       []string  `json:"hints"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
