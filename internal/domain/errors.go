package domain

import "errors"

// Breakdown errors
var (
	ErrBreakdownNotFound = errors.New("breakdown not found")
	ErrNoFiles           = errors.New("breakdown contains no files")
)

// Hint session errors
var (
	ErrHintSessionNotFound = errors.New("hint session not found")
)

// Execution errors
var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrExecutionTimeout    = errors.New("execution timed out")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
