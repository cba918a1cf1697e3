package llmjson

import (
	"strings"
)

// Repair attempts to turn a truncated or mildly malformed JSON document
// into a parseable one. Steps, in order:
//  1. close a dangling string literal,
//  2. drop a trailing partial key or value fragment,
//  3. strip trailing commas before closing brackets,
//  4. balance close brackets from the open-bracket stack.
//
// The result is best-effort; callers must re-parse and validate.
func Repair(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}

	s = closeDanglingString(s)
	s = dropPartialTail(s)
	s = stripTrailingCommas(s)
	s = balanceBrackets(s)
	return s
}

// closeDanglingString appends a closing quote when the document ends inside
// a string literal (the most common truncation point for long text fields).
func closeDanglingString(s string) string {
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
	}
	if !inString {
		return s
	}
	// A truncated escape sequence would turn the added quote into content.
	if escaped {
		s = s[:len(s)-1]
	}
	return s + `"`
}

// dropPartialTail removes a trailing fragment that cannot be completed:
// a lone key awaiting its value (`"key":`), a bare comma, or an
// unquoted literal cut mid-token (`tru`, `12.`).
func dropPartialTail(s string) string {
	for {
		t := strings.TrimRight(s, " \t\r\n")
		switch {
		case strings.HasSuffix(t, ":"):
			// Key without a value: drop the key string too.
			t = t[:len(t)-1]
			t = strings.TrimRight(t, " \t\r\n")
			if strings.HasSuffix(t, `"`) {
				if start := openingQuote(t); start >= 0 {
					t = t[:start]
				}
			}
			s = t
			continue
		case strings.HasSuffix(t, ","):
			s = t[:len(t)-1]
			continue
		}
		if cut, ok := cutDanglingKey(t); ok {
			s = cut
			continue
		}
		if cut, ok := cutPartialLiteral(t); ok {
			s = cut
			continue
		}
		return t
	}
}

// cutDanglingKey drops a trailing string literal sitting in object key
// position with no colon after it. Such a string is a key the model never
// finished writing a value for.
func cutDanglingKey(s string) (string, bool) {
	if !strings.HasSuffix(s, `"`) {
		return s, false
	}
	start := openingQuote(s)
	if start < 0 {
		return s, false
	}
	// Inspect the last non-whitespace byte before the opening quote.
	i := start - 1
	for i >= 0 && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n') {
		i--
	}
	if i < 0 {
		return s, false
	}
	switch s[i] {
	case '{':
		return s[:start], true
	case ',':
		if innermostOpen(s[:start]) == '{' {
			return s[:i], true
		}
	}
	return s, false
}

// innermostOpen returns the innermost unmatched open bracket of s, or 0.
func innermostOpen(s string) byte {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1]
}

// openingQuote returns the index of the quote that opens the string literal
// ending at the final byte of s, or -1.
func openingQuote(s string) int {
	if !strings.HasSuffix(s, `"`) {
		return -1
	}
	for i := len(s) - 2; i >= 0; i-- {
		if s[i] == '"' {
			// Count preceding backslashes to skip escaped quotes.
			bs := 0
			for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
				bs++
			}
			if bs%2 == 0 {
				return i
			}
		}
	}
	return -1
}

// cutPartialLiteral drops an unquoted literal (true/false/null or a number)
// that was cut mid-token at the end of the document.
func cutPartialLiteral(s string) (string, bool) {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+' || c == 'E' {
			i--
			continue
		}
		break
	}
	if i == len(s) {
		return s, false
	}
	tok := s[i:]
	for _, complete := range []string{"true", "false", "null"} {
		if tok == complete {
			return s, false
		}
	}
	// Complete numbers are kept.
	if isNumber(tok) {
		return s, false
	}
	return strings.TrimRight(s[:i], " \t\r\n"), true
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	dot := false
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '-' && i == 0:
		case c == '.' && !dot && i > 0 && i < len(tok)-1:
			dot = true
		default:
			return false
		}
	}
	return tok != "-"
}

// stripTrailingCommas removes commas directly before a closing bracket.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			b.WriteByte(c)
			continue
		}
		if inString {
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\r' || s[j] == '\t') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// balanceBrackets appends the close brackets still open at end of input.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return s
	}
	// A trailing comma may have been exposed by dropPartialTail running
	// before the stack was known.
	s = stripTrailingCommas(strings.TrimRight(s, " \t\r\n,"))
	var b strings.Builder
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
