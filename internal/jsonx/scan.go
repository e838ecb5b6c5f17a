package jsonx

// The scanners in this file are single-pass character state machines over
// candidate JSON text. They track three string states (normal, in-string,
// escaped) plus a delimiter stack, which is enough to answer the questions
// the repair strategies ask: where does the object that opens at position
// start close, which delimiters are still open at the end of a truncated
// text, and does the cutoff land inside a string.

type stringState int

const (
	stateNormal stringState = iota
	stateInString
	stateEscaped
)

// matchObject returns the end index (inclusive) of the object opening at
// start, honoring strings and escapes so a brace inside a quoted value
// does not count. ok is false when the object never closes.
func matchObject(s string, start int) (end int, ok bool) {
	return matchDelim(s, start, '{', '}')
}

// matchArray is matchObject for arrays.
func matchArray(s string, start int) (end int, ok bool) {
	return matchDelim(s, start, '[', ']')
}

func matchDelim(s string, start int, open, close byte) (int, bool) {
	if start < 0 || start >= len(s) || s[start] != open {
		return -1, false
	}

	state := stateNormal
	depth := 0
	for i := start; i < len(s); i++ {
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
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return -1, false
}

// openDelims scans the whole text and returns the stack of object/array
// delimiters still open at the end, plus whether the text ends inside a
// string. The stack is what truncation completion appends, reversed.
func openDelims(s string) (stack []byte, inString bool) {
	state := stateNormal
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
			case '{', '[':
				stack = append(stack, c)
			case '}':
				if n := len(stack); n > 0 && stack[n-1] == '{' {
					stack = stack[:n-1]
				}
			case ']':
				if n := len(stack); n > 0 && stack[n-1] == '[' {
					stack = stack[:n-1]
				}
			}
		}
	}
	return stack, state != stateNormal
}

// terminatorIndex finds the unescaped closing quote that ends a string
// value on this line: the last unescaped quote whose trailing text is
// nothing but whitespace, commas, and closing delimiters. Returns -1 when
// the line does not terminate a string value.
func terminatorIndex(line string) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i] != '"' || isEscapedAt(line, i) {
			continue
		}
		if onlyClosersAfter(line[i+1:]) {
			return i
		}
		return -1
	}
	return -1
}

// isEscapedAt reports whether the character at index i is preceded by an
// odd number of backslashes.
func isEscapedAt(s string, i int) bool {
	backslashes := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		backslashes++
	}
	return backslashes%2 == 1
}

func onlyClosersAfter(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', ',', '}', ']':
		default:
			return false
		}
	}
	return true
}

// escapeStringContent escapes raw text so it can sit inside a JSON string
// literal: backslashes, quotes, and control characters. Newlines between
// joined lines become the two-character \n token.
func escapeStringContent(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b = append(b, '\\', '\\')
		case '"':
			b = append(b, '\\', '"')
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		default:
			if c < 0x20 {
				const hex = "0123456789abcdef"
				b = append(b, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
			} else {
				b = append(b, c)
			}
		}
	}
	return string(b)
}
