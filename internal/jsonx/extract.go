// Package jsonx recovers structured data from LLM completion text.
//
// Hosted models asked for "ONLY valid JSON" still wrap the payload in
// markdown fences, surround it with prose, put raw newlines inside string
// values, or get cut off at the output-token ceiling. Extract runs an
// ordered chain of strategies, each more tolerant (and costlier) than the
// last, and returns the first parseable object. Clean input never pays for
// the repairs: the direct parse is tried first.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Document is a parsed model reply: a JSON object decoded with
// json.Number so downstream validation can tell integers from strings
// and floats. Treat it as immutable once returned.
type Document map[string]any

// Strategy identifies which step of the chain produced a document.
type Strategy string

const (
	StrategyDirect       Strategy = "direct"
	StrategyFenced       Strategy = "fence_strip"
	StrategyEscapeRepair Strategy = "escape_repair"
	StrategyBracketMatch Strategy = "bracket_match"
	StrategyCompletion   Strategy = "truncation_completion"
	StrategyScan         Strategy = "exhaustive_scan"
)

// Trace carries per-call diagnostics for observability.
type Trace struct {
	Strategy Strategy
}

// Extractor runs the strategy chain. The zero value is not usable; call
// NewExtractor, then override fields for record kinds that need them.
type Extractor struct {
	// LongStringFields are fields known to carry whole file bodies or
	// other multi-line content. The escape-repair strategy only rewrites
	// values of these fields, so a stray quote elsewhere cannot trigger a
	// bogus repair.
	LongStringFields []string

	// PlaceholderFields are injected with the given zero values after a
	// successful truncation completion, when absent from the document.
	// Populated per record kind by the caller (the file-scaffold kind
	// injects an empty task_todos map).
	PlaceholderFields map[string]any

	longFieldOpen *regexp.Regexp
}

// defaultLongStringFields covers the code-bearing fields of every record
// kind this service parses.
var defaultLongStringFields = []string{
	"code_snippet",
	"code",
	"example_code",
	"instructions",
	"hint",
	"content",
}

// NewExtractor returns an extractor with the default long-string field set
// and no placeholder injection.
func NewExtractor() *Extractor {
	e := &Extractor{LongStringFields: defaultLongStringFields}
	e.compile()
	return e
}

func (e *Extractor) compile() {
	quoted := make([]string, len(e.LongStringFields))
	for i, f := range e.LongStringFields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	// Greedy prefix: when a line carries several fields, the last
	// long-string opener on it is the one that can run past the line end.
	e.longFieldOpen = regexp.MustCompile(`^(.*"(?:` + strings.Join(quoted, "|") + `)"\s*:\s*")(.*)$`)
}

var defaultExtractor = NewExtractor()

// Extract recovers a single JSON object from raw model text using the
// default extractor.
func Extract(raw string) (Document, error) {
	doc, _, err := defaultExtractor.ExtractWithTrace(raw)
	return doc, err
}

// ExtractList recovers a JSON array from raw model text using the default
// extractor.
func ExtractList(raw string) ([]any, error) {
	return defaultExtractor.ExtractList(raw)
}

// Extract recovers a single JSON object from raw model text.
func (e *Extractor) Extract(raw string) (Document, error) {
	doc, _, err := e.ExtractWithTrace(raw)
	return doc, err
}

// ExtractWithTrace is Extract plus diagnostics about which strategy
// succeeded.
func (e *Extractor) ExtractWithTrace(raw string) (Document, Trace, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, Trace{}, &ExtractionError{Length: len(raw), Offset: -1, Reason: "empty response"}
	}

	// Fast path: the reply is already a clean object.
	doc, directErr := parseObject(trimmed)
	if directErr == nil {
		return doc, Trace{Strategy: StrategyDirect}, nil
	}
	lastOffset := offsetOf(directErr)

	// Strip markdown fences and retry the direct parse.
	stripped := stripFences(trimmed)
	if stripped != trimmed {
		if doc, err := parseObject(stripped); err == nil {
			return doc, Trace{Strategy: StrategyFenced}, nil
		}
	}

	// Targeted repair of raw newlines and quotes inside long string values.
	if repaired := e.repairLongStrings(stripped, false); repaired != stripped {
		if doc, err := parseObject(repaired); err == nil {
			return doc, Trace{Strategy: StrategyEscapeRepair}, nil
		}
	}

	start := strings.IndexByte(stripped, '{')
	if start < 0 {
		return nil, Trace{}, &ExtractionError{Length: len(raw), Offset: lastOffset, Reason: "no opening brace"}
	}

	if end, ok := matchObject(stripped, start); ok {
		// The text carries commentary around a balanced object span.
		span := stripped[start : end+1]
		if doc, err := parseObject(span); err == nil {
			return doc, Trace{Strategy: StrategyBracketMatch}, nil
		} else if off := offsetOf(err); off >= 0 {
			// A -1 means a non-syntax failure with no position to report;
			// keep the earlier offset rather than a bogus start-1.
			lastOffset = start + off
		}
		if doc, err := parseObject(e.repairLongStrings(span, false)); err == nil {
			return doc, Trace{Strategy: StrategyBracketMatch}, nil
		}
	} else {
		// No closing brace: the reply was cut off at the token ceiling.
		if doc, ok := e.completeTruncated(stripped[start:]); ok {
			return doc, Trace{Strategy: StrategyCompletion}, nil
		}
	}

	// Last resort: try every brace-delimited substring.
	if doc := scanForObject(stripped); doc != nil {
		return doc, Trace{Strategy: StrategyScan}, nil
	}

	return nil, Trace{}, &ExtractionError{Length: len(raw), Offset: lastOffset, Reason: "all strategies exhausted"}
}

// ExtractList recovers a JSON array, either bare or wrapped in an object
// under a "tests" key (the shape the test-generation prompt allows).
func (e *Extractor) ExtractList(raw string) ([]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ExtractionError{Length: len(raw), Offset: -1, Reason: "empty response"}
	}

	stripped := stripFences(trimmed)
	if list, err := parseArray(stripped); err == nil {
		return list, nil
	}

	// The model sometimes wraps the array in an object.
	if doc, _, err := e.ExtractWithTrace(raw); err == nil {
		if arr, ok := doc["tests"].([]any); ok {
			return arr, nil
		}
	}

	start := strings.IndexByte(stripped, '[')
	if start < 0 {
		return nil, &ExtractionError{Length: len(raw), Offset: -1, Reason: "no opening bracket"}
	}

	if end, ok := matchArray(stripped, start); ok {
		span := stripped[start : end+1]
		if list, err := parseArray(span); err == nil {
			return list, nil
		}
		if list, err := parseArray(e.repairLongStrings(span, false)); err == nil {
			return list, nil
		}
	} else if list, ok := e.completeTruncatedArray(stripped[start:]); ok {
		return list, nil
	}

	return nil, &ExtractionError{Length: len(raw), Offset: -1, Reason: "no parseable array"}
}

// completeTruncated repairs a text whose object never closes: close the
// open string if the cutoff landed inside one, drop any dangling partial
// element, re-balance delimiters, and parse. Bounded, because every retry
// cuts the text strictly shorter.
func (e *Extractor) completeTruncated(span string) (Document, bool) {
	text := e.repairLongStrings(span, true)
	for attempt := 0; attempt < 8; attempt++ {
		if doc, err := parseObject(rebalance(text)); err == nil {
			for k, v := range e.PlaceholderFields {
				if _, ok := doc[k]; !ok {
					doc[k] = v
				}
			}
			return doc, true
		}
		cut := lastSafeCut(text)
		if cut <= 0 {
			return nil, false
		}
		text = text[:cut]
	}
	return nil, false
}

func (e *Extractor) completeTruncatedArray(span string) ([]any, bool) {
	text := e.repairLongStrings(span, true)
	for attempt := 0; attempt < 8; attempt++ {
		if list, err := parseArray(rebalance(text)); err == nil {
			return list, true
		}
		cut := lastSafeCut(text)
		if cut <= 0 {
			return nil, false
		}
		text = text[:cut]
	}
	return nil, false
}

// repairLongStrings scans line by line. When a line opens one of the
// long-string fields and the value does not close on that line, all
// following lines up to the terminator are treated as literal content of
// that one value: quotes and backslashes escaped, lines joined with \n.
// With closeUnterminated set (the truncation path), a value that never
// terminates is escaped through to the end of the text and closed.
func (e *Extractor) repairLongStrings(s string, closeUnterminated bool) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	changed := false

	for i := 0; i < len(lines); i++ {
		m := e.longFieldOpen.FindStringSubmatch(lines[i])
		if m == nil {
			out = append(out, lines[i])
			continue
		}
		prefix, rest := m[1], m[2]
		if terminatorIndex(rest) >= 0 {
			// Value opens and closes on the same line.
			out = append(out, lines[i])
			continue
		}

		content := []string{rest}
		suffix := ""
		terminated := false
		j := i + 1
		for ; j < len(lines); j++ {
			if term := terminatorIndex(lines[j]); term >= 0 {
				content = append(content, lines[j][:term])
				suffix = lines[j][term+1:]
				terminated = true
				break
			}
			content = append(content, lines[j])
		}

		if !terminated {
			if !closeUnterminated {
				// Cannot find the end of the value; leave the tail alone.
				out = append(out, lines[i:]...)
				i = len(lines)
				break
			}
			j = len(lines) - 1
		}

		out = append(out, prefix+escapeStringContent(strings.Join(content, "\n"))+`"`+suffix)
		i = j
		changed = true
	}

	if !changed {
		return s
	}
	return strings.Join(out, "\n")
}

// rebalance appends the closers for every still-open delimiter, closing an
// open string first and dropping a trailing comma or dangling key colon.
func rebalance(s string) string {
	stack, inString := openDelims(s)

	var b strings.Builder
	b.Grow(len(s) + len(stack) + 1)

	trimmed := strings.TrimRight(s, " \t\r\n")
	if !inString {
		trimmed = strings.TrimRight(trimmed, ", \t\r\n")
		trimmed = strings.TrimSuffix(trimmed, ":")
	}
	b.WriteString(trimmed)

	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// lastSafeCut returns the position of the last element separator outside
// any string, so a dangling partial element can be dropped. Zero means
// there is nothing left to cut.
func lastSafeCut(s string) int {
	state := stateNormal
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case stateEscaped:
			state = stateInString
		case stateInString:
			switch c {
			case '\\':
				state = stateEscaped
			case '"':
				state = stateNormal
			}
		default:
			switch c {
			case '"':
				state = stateInString
			case ',':
				last = i
			}
		}
	}
	return last
}

// scanForObject enumerates every opening-brace position and, for each,
// every later closing-brace position, returning the first substring that
// parses as an object. Quadratic by design; it only runs when everything
// else has failed, and callers bound input size upstream.
func scanForObject(s string) Document {
	var opens, closes []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			opens = append(opens, i)
		case '}':
			closes = append(closes, i)
		}
	}
	for _, i := range opens {
		for _, j := range closes {
			if j <= i {
				continue
			}
			if doc, err := parseObject(s[i : j+1]); err == nil {
				return doc
			}
		}
	}
	return nil
}

// fenceLine matches a markdown fence on its own line, with an optional
// language tag.
var fenceLine = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z0-9]*[ \t]*\r?\n?")

func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	return strings.TrimSpace(fenceLine.ReplaceAllString(s, ""))
}

// parseObject parses s as exactly one JSON object with numeric values kept
// as json.Number. Trailing non-whitespace fails the parse so that
// prose-wrapped payloads fall through to the repair strategies.
func parseObject(s string) (Document, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after object")
	}
	return doc, nil
}

func parseArray(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var list []any
	if err := dec.Decode(&list); err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("not a JSON array")
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after array")
	}
	return list, nil
}

func offsetOf(err error) int {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return int(syn.Offset)
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		return int(typ.Offset)
	}
	return -1
}
