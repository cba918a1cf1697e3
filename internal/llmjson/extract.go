// Package llmjson turns the frequently malformed JSON replies of vision
// language models into parseable documents. Recovery is layered: strict
// parse, fence/preamble extraction, truncation repair, regex partial
// extraction, and finally a labeled fallback object.
package llmjson

import (
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON document can be located in a reply.
var ErrNoJSON = errors.New("no JSON found in response")

// Extract locates the JSON document inside a raw model reply. It strips
// markdown code fences, drops surrounding prose, and selects the first
// balanced object or array using a string-aware scanner. The returned
// string is not guaranteed to be valid JSON; callers re-parse it.
func Extract(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrNoJSON
	}

	if fenced, ok := extractFenced(s); ok {
		s = fenced
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	s = s[start:]

	if end := scanBalanced(s); end > 0 {
		return s[:end], nil
	}
	// Unbalanced: trim trailing prose after the last closing bracket so the
	// repair layer works on the JSON-ish tail only.
	if last := strings.LastIndexAny(s, "}]"); last >= 0 && last+1 < len(s) {
		if looksLikeProse(s[last+1:]) {
			s = s[:last+1]
		}
	}
	return strings.TrimSpace(s), nil
}

// extractFenced returns the content of the first markdown code fence,
// dropping an optional language tag on the opening line.
func extractFenced(s string) (string, bool) {
	idx := strings.Index(s, "```")
	if idx < 0 {
		return "", false
	}
	body := s[idx+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && nl < 20 {
		// Opening line carries a language tag like "json".
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || isIdent(tag) {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	return body, body != ""
}

func isIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// scanBalanced scans s (which must start with '{' or '[') and returns the
// index just past the matching close bracket, or -1 if the document is
// truncated. String literals and escapes are honored.
func scanBalanced(s string) int {
	if len(s) == 0 {
		return -1
	}
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
			switch c {
			case '\\':
				escaped = true
			case '"':
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
			if len(stack) == 0 {
				return -1
			}
			open := stack[len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// looksLikeProse reports whether the trailing text after a JSON document is
// explanatory prose rather than more JSON.
func looksLikeProse(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, "{}[]\"")
}
