// Package reconcile merges the per-provider results of one analysis into the
// normalized record that is persisted and served.
package reconcile

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"screenplay-analyzer/internal/budget"
	"screenplay-analyzer/internal/providers"
)

// DefaultGenre is used when neither the submitter nor the primary analysis names one.
const DefaultGenre = "Drama"

// Section statuses. Missing marks a provider that was never invoked.
const (
	StatusSucceeded = providers.OutcomeSucceeded
	StatusFailed    = providers.OutcomeFailed
	StatusSkipped   = providers.OutcomeSkipped
	StatusMissing   = "missing"
)

// Coverage summarises how many providers contributed.
const (
	CoverageFull    = "full"
	CoveragePartial = "partial"
	CoverageNone    = "none"
)

// Section is one provider's contribution. Fields is never nil; a provider that
// did not succeed contributes its documented defaults.
type Section struct {
	Provider   string         `json:"provider"`
	Model      string         `json:"model,omitempty"`
	Status     string         `json:"status"`
	Score      *float64       `json:"score"`
	Verdict    string         `json:"verdict,omitempty"`
	Fields     map[string]any `json:"fields"`
	Cost       float64        `json:"cost"`
	DurationMs int64          `json:"duration_ms"`
	Repaired   bool           `json:"repaired,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Record is the normalized analysis outcome.
type Record struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Genre  string `json:"genre"`
	// DetectedGenre is set only when the submitter left the genre blank and the
	// primary analysis named one.
	DetectedGenre  *string            `json:"detected_genre"`
	OverallScore   float64            `json:"overall_score"`
	Recommendation string             `json:"recommendation"`
	Coverage       string             `json:"coverage"`
	Budget         budget.Context     `json:"budget"`
	Sections       map[string]Section `json:"sections"`
	Succeeded      []string           `json:"succeeded"`
	Failed         []string           `json:"failed"`
	Skipped        []string           `json:"skipped"`
	TotalCost      float64            `json:"total_cost"`
	ProviderCount  int                `json:"provider_count"`
}

// Section returns the named section and whether it exists.
func (r Record) Section(provider string) (Section, bool) {
	s, ok := r.Sections[provider]
	return s, ok
}

// Meta is the submission data the record is keyed by.
type Meta struct {
	ID     string
	UserID string
	Title  string
	Genre  string
	Budget budget.Context
}

// Reconciler holds the defaults of every known provider.
type Reconciler struct {
	Schemas map[string]providers.Schema
	// Primary names the provider whose score and genre lead the record.
	Primary string
}

// New returns a reconciler for the built-in providers.
func New() *Reconciler {
	return &Reconciler{Schemas: providers.Schemas(), Primary: providers.Craft}
}

// Merge builds the record. It performs no I/O, never fails, does not modify its
// inputs, and returns the same record for the same inputs in any order.
func (rc *Reconciler) Merge(meta Meta, results ...providers.Result) Record {
	chosen := map[string]providers.Result{}
	for _, r := range results {
		if r.Provider == "" {
			continue
		}
		if prev, ok := chosen[r.Provider]; !ok || preferred(r, prev) {
			chosen[r.Provider] = r
		}
	}

	names := make([]string, 0, len(rc.Schemas)+len(chosen))
	seen := map[string]bool{}
	for name := range rc.Schemas {
		names = append(names, name)
		seen[name] = true
	}
	for name := range chosen {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	rec := Record{
		ID:        meta.ID,
		UserID:    meta.UserID,
		Title:     meta.Title,
		Budget:    meta.Budget,
		Sections:  make(map[string]Section, len(names)),
		Succeeded: []string{},
		Failed:    []string{},
		Skipped:   []string{},
	}
	for _, name := range names {
		r, invoked := chosen[name]
		sec := rc.section(name, r, invoked)
		rec.Sections[name] = sec
		rec.TotalCost += sec.Cost
		switch sec.Status {
		case StatusSucceeded:
			rec.Succeeded = append(rec.Succeeded, name)
		case StatusFailed:
			rec.Failed = append(rec.Failed, name)
		case StatusSkipped:
			rec.Skipped = append(rec.Skipped, name)
		}
		if invoked {
			rec.ProviderCount++
		}
	}

	rc.applyGenre(&rec, meta)
	rc.applyScore(&rec)

	switch {
	case len(rec.Succeeded) == 0:
		rec.Coverage = CoverageNone
	case len(rec.Failed) == 0 && len(rec.Skipped) == 0:
		rec.Coverage = CoverageFull
	default:
		rec.Coverage = CoveragePartial
	}
	return rec
}

func (rc *Reconciler) section(name string, r providers.Result, invoked bool) Section {
	schema, known := rc.Schemas[name]
	sec := Section{Provider: name}
	if !invoked {
		sec.Status = StatusMissing
	} else {
		sec.Status = r.Outcome()
		sec.Model = r.Model
		sec.Cost = r.Cost
		sec.DurationMs = r.Duration.Milliseconds()
		sec.Repaired = r.Repaired
		sec.Error = r.Error
	}
	if sec.Status == StatusSucceeded {
		sec.Fields = r.CloneFields()
		if sec.Fields == nil {
			sec.Fields = map[string]any{}
		}
		if r.Score != nil {
			v := *r.Score
			sec.Score = &v
		}
		sec.Verdict = r.Verdict
		return sec
	}
	if known {
		sec.Fields = schema.Defaults()
		sec.Score = schema.DefaultScore()
		sec.Verdict = schema.DefaultVerdict()
	} else {
		sec.Fields = map[string]any{}
	}
	return sec
}

func (rc *Reconciler) applyGenre(rec *Record, meta Meta) {
	if g := strings.TrimSpace(meta.Genre); g != "" {
		rec.Genre = g
		return
	}
	rec.Genre = DefaultGenre
	primary, ok := rec.Sections[rc.Primary]
	if !ok || primary.Status != StatusSucceeded {
		return
	}
	if g, _ := primary.Fields["genre"].(string); strings.TrimSpace(g) != "" {
		detected := strings.TrimSpace(g)
		rec.DetectedGenre = &detected
		rec.Genre = detected
	}
}

// applyScore takes the primary's score and recommendation. Without a successful
// primary the mean of the successful secondary scores stands in, and the
// recommendation is derived from it.
func (rc *Reconciler) applyScore(rec *Record) {
	if primary, ok := rec.Sections[rc.Primary]; ok && primary.Status == StatusSucceeded && primary.Score != nil {
		rec.OverallScore = *primary.Score
		rec.Recommendation = primary.Verdict
		if rec.Recommendation == "" {
			rec.Recommendation = providers.RecommendationFromScore(rec.OverallScore)
		}
		return
	}

	var sum float64
	var n int
	for _, name := range rec.Succeeded {
		if name == rc.Primary {
			continue
		}
		if s := rec.Sections[name].Score; s != nil {
			sum += *s
			n++
		}
	}
	switch {
	case n > 0:
		rec.OverallScore = math.Round(sum/float64(n)*10) / 10
	default:
		if schema, ok := rc.Schemas[rc.Primary]; ok && schema.ScoreField != "" {
			rec.OverallScore = schema.ScoreDefault
		}
	}
	rec.Recommendation = providers.RecommendationFromScore(rec.OverallScore)
}

// preferred orders duplicate results for the same provider: a success beats a
// failure which beats a skip, and ties fall back to the encoded bytes so the
// choice never depends on input order.
func preferred(a, b providers.Result) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra > rb
	}
	ea, _ := json.Marshal(a)
	eb, _ := json.Marshal(b)
	return bytes.Compare(ea, eb) < 0
}

func rank(r providers.Result) int {
	switch r.Outcome() {
	case providers.OutcomeSucceeded:
		return 2
	case providers.OutcomeFailed:
		return 1
	default:
		return 0
	}
}
