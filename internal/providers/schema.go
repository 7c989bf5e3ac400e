package providers

import (
	"math"
	"strconv"
	"strings"

	"screenplay-analyzer/internal/jsonrepair"
	"screenplay-analyzer/internal/shared/util"
)

// FieldSpec documents one required output field and its default.
type FieldSpec struct {
	Name    string
	Default any
	// Min/Max clamp numeric values when Max > Min.
	Min, Max float64
}

// Schema is the output contract of one backend.
type Schema struct {
	// ScoreField names the payload key holding the headline score. Empty means
	// the backend produces no score.
	ScoreField   string
	ScoreDefault float64
	ScoreMin     float64
	ScoreMax     float64

	VerdictField   string
	VerdictDefault string
	// VerdictFromScore derives the verdict when the payload has none.
	VerdictFromScore func(score float64) string
	VerdictMaxLen    int
	// VerdictAllowed rejects verdicts outside the list when non-empty.
	VerdictAllowed []string

	Fields []FieldSpec
}

// Defaults returns a fresh map holding every required field at its default.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Fields)+2)
	for _, f := range s.Fields {
		out[f.Name] = cloneValue(f.Default)
	}
	return out
}

// DefaultScore returns the documented score default, or nil for scoreless backends.
func (s Schema) DefaultScore() *float64 {
	if s.ScoreField == "" {
		return nil
	}
	v := s.ScoreDefault
	return &v
}

// DefaultVerdict returns the verdict applied when the payload has none.
func (s Schema) DefaultVerdict() string {
	if s.VerdictFromScore != nil && s.ScoreField != "" {
		return s.VerdictFromScore(s.ScoreDefault)
	}
	return s.VerdictDefault
}

// apply fills r from a parsed payload (possibly nil) and the raw completion text,
// so that no required field is ever missing or null.
func (s Schema) apply(r *Result, payload map[string]any, raw string) {
	fields := make(map[string]any, len(payload)+len(s.Fields))
	for k, v := range payload {
		fields[k] = v
	}
	for _, f := range s.Fields {
		fields[f.Name] = mergeDefault(fields[f.Name], f.Default)
		if f.Max > f.Min {
			if n, ok := toFloat(fields[f.Name]); ok {
				fields[f.Name] = clamp(n, f.Min, f.Max)
			}
		}
	}

	if s.ScoreField != "" {
		score, ok := toFloat(payload[s.ScoreField])
		if !ok && payload == nil {
			score, ok = jsonrepair.ScalarFloat(raw, jsonrepair.OutOfTenPattern, jsonrepair.ScorePattern)
		}
		if !ok {
			score = s.ScoreDefault
		}
		if s.ScoreMax > s.ScoreMin {
			score = clamp(score, s.ScoreMin, s.ScoreMax)
		}
		fields[s.ScoreField] = score
		r.Score = &score
	}

	if s.VerdictField != "" {
		verdict, _ := payload[s.VerdictField].(string)
		if verdict == "" && payload == nil {
			verdict, _ = jsonrepair.ScalarString(raw, s.VerdictField)
		}
		verdict = strings.TrimSpace(verdict)
		if verdict != "" && len(s.VerdictAllowed) > 0 && !contains(s.VerdictAllowed, verdict) {
			verdict = ""
		}
		if verdict == "" {
			if s.VerdictFromScore != nil && r.Score != nil {
				verdict = s.VerdictFromScore(*r.Score)
			} else {
				verdict = s.VerdictDefault
			}
		}
		if s.VerdictMaxLen > 0 && len(verdict) > s.VerdictMaxLen {
			verdict = truncateRunes(verdict, s.VerdictMaxLen)
		}
		fields[s.VerdictField] = verdict
		r.Verdict = verdict
	}

	r.Fields = fields
}

// RecommendationFromScore maps a 0-10 score onto the four-level scale.
func RecommendationFromScore(score float64) string {
	switch {
	case score < 5:
		return "Pass"
	case score < 7:
		return "Consider"
	case score < 8.5:
		return "Recommend"
	default:
		return "Strong Recommend"
	}
}

// Recommendations lists the accepted recommendation values.
var Recommendations = []string{"Pass", "Consider", "Recommend", "Strong Recommend"}

// mergeDefault fills a missing value with def. Objects are merged key by key so a
// partial nested object keeps what the provider sent.
func mergeDefault(v, def any) any {
	if v == nil {
		return cloneValue(def)
	}
	dm, ok := def.(map[string]any)
	if !ok {
		return v
	}
	vm, ok := v.(map[string]any)
	if !ok {
		// a string where an object was expected is kept under "summary"
		if s, isStr := v.(string); isStr {
			out := cloneValue(dm).(map[string]any)
			out["summary"] = s
			return out
		}
		return cloneValue(def)
	}
	out := make(map[string]any, len(vm)+len(dm))
	for k, val := range vm {
		out[k] = val
	}
	for k, d := range dm {
		out[k] = mergeDefault(out[k], d)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func parseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || (end == 0 && s[end] == '-')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	return v, err == nil
}

func sanitizeError(msg string) string {
	return util.SanitizeMessage(msg, 500)
}
