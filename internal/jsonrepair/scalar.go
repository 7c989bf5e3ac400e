package jsonrepair

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// ScorePattern matches `score: 7.5`, `"score": 7`, `Score 8`.
	ScorePattern = regexp.MustCompile(`(?i)score["\s:]*(\d+\.?\d*)`)
	// OutOfTenPattern matches `7.5/10` and `8 \ 10`.
	OutOfTenPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[/\\]\s*10`)
)

// ScalarFloat returns the first capture of the first pattern that matches text.
func ScalarFloat(text string, patterns ...*regexp.Regexp) (float64, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v, true
		}
	}
	return 0, false
}

// ScalarString pulls a quoted string value for key out of JSON-ish text.
func ScalarString(text, key string) (string, bool) {
	p := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"((?:[^"\\]|\\.)*)`)
	m := p.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	v, err := strconv.Unquote(`"` + m[1] + `"`)
	if err != nil {
		v = m[1]
	}
	return strings.TrimSpace(v), v != ""
}
