package providers

import (
	"time"
)

// Outcome labels used in progress messages, metrics and the usage ledger.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Result is the settled outcome of one provider invocation.
type Result struct {
	Provider     string         `json:"provider"`
	Model        string         `json:"model,omitempty"`
	Success      bool           `json:"success"`
	Skipped      bool           `json:"skipped,omitempty"`
	Score        *float64       `json:"score,omitempty"`
	Verdict      string         `json:"verdict,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	Cost         float64        `json:"cost"`
	Duration     time.Duration  `json:"duration"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	Attempts     int            `json:"attempts,omitempty"`
	Repaired     bool           `json:"repaired,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Failed builds an unsuccessful Result.
func Failed(provider string, err error) Result {
	r := Result{Provider: provider}
	if err != nil {
		r.Error = sanitizeError(err.Error())
	}
	return r
}

// Skipped builds the Result recorded for a disabled provider.
func Skipped(provider string) Result {
	return Result{Provider: provider, Skipped: true, Error: ErrDisabled.Error()}
}

// Outcome reports succeeded, failed or skipped.
func (r Result) Outcome() string {
	switch {
	case r.Success:
		return OutcomeSucceeded
	case r.Skipped:
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}

// ScoreOr returns the score or def when absent.
func (r Result) ScoreOr(def float64) float64 {
	if r.Score == nil {
		return def
	}
	return *r.Score
}

// Float reads a numeric field.
func (r Result) Float(key string) (float64, bool) {
	return toFloat(r.Fields[key])
}

// String reads a string field, or "" when missing or not a string.
func (r Result) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Strings reads a list field, keeping only string elements.
func (r Result) Strings(key string) []string {
	switch v := r.Fields[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map reads an object field.
func (r Result) Map(key string) map[string]any {
	m, _ := r.Fields[key].(map[string]any)
	return m
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, ok := parseLeadingFloat(n)
		return f, ok
	}
	return 0, false
}

// CloneFields returns a deep copy of the field map so callers can hold it
// without sharing nested maps or slices with r.
func (r Result) CloneFields() map[string]any {
	if r.Fields == nil {
		return nil
	}
	return cloneValue(r.Fields).(map[string]any)
}
