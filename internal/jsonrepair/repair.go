// Package jsonrepair recovers JSON objects from model output: objects wrapped in
// prose or code fences, objects cut off mid-stream, and, as a last resort, single
// scalar values pulled out with regular expressions.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnparseable is returned when no strategy yields a JSON object.
var ErrUnparseable = errors.New("jsonrepair: no JSON object found")

// Parse decodes raw into an object, trying in order: the cleaned text as-is, the
// largest brace-delimited substring, and a balance-repaired version of it.
func Parse(raw string) (map[string]any, error) {
	text := Clean(raw)
	if obj, ok := decodeObject(text); ok {
		return obj, nil
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrUnparseable
	}
	if extracted, ok := Extract(text); ok {
		if obj, ok := decodeObject(extracted); ok {
			return obj, nil
		}
	}
	// Truncated output usually has no final closing brace, so repair from the
	// first opening brace to the end before trying the shorter extraction.
	if obj, ok := decodeObject(Balance(text[start:])); ok {
		return obj, nil
	}
	if extracted, ok := Extract(text); ok {
		if obj, ok := decodeObject(Balance(extracted)); ok {
			return obj, nil
		}
	}
	return nil, ErrUnparseable
}

// Clean trims whitespace and strips a surrounding markdown code fence.
func Clean(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			// drop the language tag line
			text = text[nl+1:]
		}
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// Extract returns the substring from the first '{' to the last '}'.
func Extract(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func decodeObject(text string) (map[string]any, bool) {
	if text == "" || text[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

type phase int

const (
	expectKey phase = iota
	afterKey
	expectValue
	afterValue
)

type frame struct {
	open  byte
	phase phase
}

// Balance appends the minimal closing tokens that turn a truncated JSON document
// into a syntactically valid one. An unterminated string is closed, a dangling key
// or colon gets a null value, a trailing comma or partial literal is dropped or
// completed, and open arrays and objects are closed innermost first. Complete
// documents come back unchanged apart from trailing whitespace.
func Balance(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	var (
		stack   []frame
		inStr   bool
		escaped bool
		literal bool
	)
	setPhase := func(p phase) {
		if len(stack) > 0 {
			stack[len(stack)-1].phase = p
		}
	}
	endString := func() {
		if len(stack) > 0 && stack[len(stack)-1].open == '{' && stack[len(stack)-1].phase == expectKey {
			setPhase(afterKey)
			return
		}
		setPhase(afterValue)
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
				endString()
			}
			continue
		}
		literal = false
		switch c {
		case '"':
			inStr = true
		case '{':
			stack = append(stack, frame{open: '{', phase: expectKey})
		case '[':
			stack = append(stack, frame{open: '[', phase: expectValue})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			setPhase(afterValue)
		case ':':
			setPhase(expectValue)
		case ',':
			if len(stack) > 0 && stack[len(stack)-1].open == '{' {
				setPhase(expectKey)
			} else {
				setPhase(expectValue)
			}
		case ' ', '\t', '\r', '\n':
		default:
			literal = true
			setPhase(afterValue)
		}
	}

	out := s
	if inStr {
		if escaped {
			out = out[:len(out)-1]
		}
		out = trimPartialEscape(out)
		out = trimPartialRune(out)
		out += `"`
		endString()
	} else if literal {
		var ok bool
		if out, ok = fixLiteral(out); !ok {
			setPhase(expectValue)
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		switch top.phase {
		case afterKey:
			out += ":null"
		case expectValue:
			trimmed := strings.TrimRight(out, " \t\r\n")
			switch {
			case strings.HasSuffix(trimmed, ":"):
				out = trimmed + "null"
			case strings.HasSuffix(trimmed, ","):
				out = strings.TrimSuffix(trimmed, ",")
			case top.open == '{' && !strings.HasSuffix(trimmed, "{"):
				out = trimmed + "null"
			}
		case expectKey:
			out = strings.TrimSuffix(strings.TrimRight(out, " \t\r\n"), ",")
		}
	}

	var b strings.Builder
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].open == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

var (
	partialEscape = regexp.MustCompile(`\\u[0-9a-fA-F]{0,3}$`)
	numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
)

func trimPartialEscape(s string) string {
	if loc := partialEscape.FindStringIndex(s); loc != nil {
		// an even number of preceding backslashes means the \u is itself escaped
		backslashes := 0
		for i := loc[0] - 1; i >= 0 && s[i] == '\\'; i-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return s[:loc[0]]
		}
	}
	return s
}

func trimPartialRune(s string) string {
	for n := 0; n < utf8.UTFMax && len(s) > 0; n++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}

// fixLiteral completes or trims a bare literal at the end of s. It reports false
// when nothing of the literal survives.
func fixLiteral(s string) (string, bool) {
	i := len(s)
	for i > 0 && isLiteralByte(s[i-1]) {
		i--
	}
	head, tail := s[:i], s[i:]
	for _, word := range []string{"true", "false", "null"} {
		if strings.HasPrefix(word, tail) {
			return head + word, true
		}
	}
	for len(tail) > 0 && !numberPattern.MatchString(tail) {
		tail = tail[:len(tail)-1]
	}
	return head + tail, tail != ""
}

func isLiteralByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '.' || c == '-' || c == '+'
}
