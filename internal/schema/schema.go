// Package schema checks documents recovered by the jsonx extractor
// against the shape each record kind requires, and fills in a small
// whitelisted set of optional fields instead of rejecting for them.
//
// Validation is fail-first: the first violation aborts with a
// ValidationError naming the exact field and, where it helps, the owning
// filename, class, or task id. Callers use that message verbatim in the
// correction instruction appended to a retry prompt, so precision matters
// more than completeness here.
package schema

import (
	"encoding/json"
	"fmt"
)

// RecordKind selects the rule set a document is validated against.
type RecordKind string

const (
	AssignmentBreakdown RecordKind = "assignment_breakdown"
	FileScaffold        RecordKind = "file_scaffold"
	Hint                RecordKind = "hint"
	TestCaseList        RecordKind = "test_case_list"
)

// ValidationError reports the first rule violation found in a document.
// Field is the offending field name; Subject names the owning file, class,
// or task when one exists.
type ValidationError struct {
	Kind    RecordKind
	Field   string
	Subject string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func errf(kind RecordKind, field, subject, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Field:   field,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validator validates extracted documents. Stateless; the zero value via
// NewValidator is safe for concurrent use.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks doc against the rules for kind. On success it may have
// filled in whitelisted optional fields (a missing breakdown overview, a
// missing hint example_code) with their documented defaults; required
// fields are never defaulted. The first violation aborts validation.
func (v *Validator) Validate(doc map[string]any, kind RecordKind) error {
	switch kind {
	case AssignmentBreakdown:
		return v.validateBreakdown(doc)
	case FileScaffold:
		return v.validateFileScaffold(doc)
	case Hint:
		return v.validateHint(doc)
	case TestCaseList:
		return v.validateTestCaseDoc(doc)
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
}

// asString returns the value as a string if it is one.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// nonEmptyString requires a present, non-empty string field.
func nonEmptyString(doc map[string]any, field string) (string, bool) {
	s, ok := doc[field].(string)
	return s, ok && s != ""
}

// asList returns the value as a list. A missing key or explicit null
// yields ok with a nil slice so callers can distinguish "absent" from
// "present but wrong type" themselves.
func asList(v any) ([]any, bool) {
	if v == nil {
		return nil, true
	}
	l, ok := v.([]any)
	return l, ok
}

// asInt returns the value as an integer. Extracted documents carry
// json.Number for all numerics, so a float literal or a numeral-as-string
// both fail here, which is the point.
func asInt(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}
