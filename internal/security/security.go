// Package security holds the input hygiene applied to every request
// before it reaches an agent or executor: length caps, unsafe content
// patterns, filename sanitization, and the language allowlist. All
// failures wrap domain.ErrInvalidInput so the API layer maps them to a
// 400 without inspecting messages.
package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/scaffyhq/scaffy/internal/domain"
)

// Input size caps. Generous for real assignments, tight enough that a
// single request cannot balloon a prompt.
const (
	MaxAssignmentTextLength = 50_000
	MaxCodeLength           = 100_000
	MaxHintQuestionLength   = 3_000

	MaxTestCasesPerFile   = 20
	MaxFilesPerAssignment = 10
	MaxTasksPerAssignment = 30
)

// blockedPatterns are substrings that have no business in an assignment
// description, student code, or a hint question. Matched case-insensitively.
var blockedPatterns = []string{
	"rm -rf", "format c:", "del /f", "drop table", "drop database",
	"eval(", "exec(", "__import__", "os.system", "subprocess.call",
	"cryptonight", "coinhive", "crypto-loot",
}

// allowedLanguages is the set of target languages the scaffolder and the
// executors understand, including the spellings clients actually send.
var allowedLanguages = map[string]bool{
	"python": true, "javascript": true, "typescript": true,
	"java": true, "csharp": true, "c#": true, "cs": true,
	"c++": true, "cpp": true, "c": true,
	"go": true, "rust": true, "ruby": true, "php": true,
	"swift": true, "kotlin": true,
}

// ValidateTextLength rejects empty text and text over maxLen bytes.
func ValidateTextLength(text string, maxLen int, fieldName string) error {
	if text == "" {
		return fmt.Errorf("%w: %s cannot be empty", domain.ErrInvalidInput, fieldName)
	}
	if len(text) > maxLen {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters (got %d)",
			domain.ErrInvalidInput, fieldName, maxLen, len(text))
	}
	return nil
}

// ValidateAssignmentText checks an assignment description.
func ValidateAssignmentText(text string) error {
	return ValidateTextLength(text, MaxAssignmentTextLength, "assignment text")
}

// ValidateCode checks submitted student code.
func ValidateCode(code string) error {
	return ValidateTextLength(code, MaxCodeLength, "code")
}

// ValidateHintQuestion checks a hint question.
func ValidateHintQuestion(question string) error {
	return ValidateTextLength(question, MaxHintQuestionLength, "question")
}

// CheckContent rejects text containing a blocked pattern. contentType
// names the field for the diagnostic ("assignment text", "code").
func CheckContent(text, contentType string) error {
	lower := strings.ToLower(text)
	for _, pattern := range blockedPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: content contains potentially unsafe pattern %q, review your %s",
				domain.ErrInvalidInput, pattern, contentType)
		}
	}
	return nil
}

// ValidateLanguage rejects languages outside the allowlist.
func ValidateLanguage(language string) error {
	if !allowedLanguages[strings.ToLower(language)] {
		return fmt.Errorf("%w: unsupported language %q", domain.ErrUnsupportedLanguage, language)
	}
	return nil
}

// ValidateFilesCount caps how many files a breakdown request may carry.
func ValidateFilesCount(n int) error {
	if n > MaxFilesPerAssignment {
		return fmt.Errorf("%w: too many files, maximum allowed is %d", domain.ErrInvalidInput, MaxFilesPerAssignment)
	}
	return nil
}

// ValidateTasksCount caps how many tasks a breakdown may carry.
func ValidateTasksCount(n int) error {
	if n > MaxTasksPerAssignment {
		return fmt.Errorf("%w: too many tasks, maximum allowed is %d", domain.ErrInvalidInput, MaxTasksPerAssignment)
	}
	return nil
}

// ValidateTestCasesCount caps generated test cases per file.
func ValidateTestCasesCount(n int) error {
	if n > MaxTestCasesPerFile {
		return fmt.Errorf("%w: too many test cases, maximum allowed is %d", domain.ErrInvalidInput, MaxTestCasesPerFile)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips path separators, null bytes, and anything
// outside a conservative character set, and bounds the length. The result
// is safe to echo into generated code and to use as a key.
func SanitizeFilename(filename string) string {
	filename = strings.NewReplacer("/", "", "\\", "", "\x00", "").Replace(filename)
	filename = strings.Trim(filename, ". ")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "_")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) > 55 {
			ext = ext[:55]
		}
		name := strings.TrimSuffix(filename, ext)
		if len(name) > 200 {
			name = name[:200]
		}
		filename = name + ext
	}
	return filename
}
