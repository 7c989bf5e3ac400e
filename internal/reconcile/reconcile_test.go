package reconcile

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenplay-analyzer/internal/budget"
	"screenplay-analyzer/internal/providers"
)

func score(v float64) *float64 { return &v }

func craftOK(genre string) providers.Result {
	return providers.Result{
		Provider: providers.Craft,
		Model:    "claude",
		Success:  true,
		Score:    score(8.6),
		Verdict:  "Strong Recommend",
		Fields: map[string]any{
			"genre":         genre,
			"overall_score": 8.6,
			"top_strengths": []any{"voice", "pace"},
		},
		Cost:     0.42,
		Duration: 1500 * time.Millisecond,
	}
}

func secondary(name string, s float64, cost float64) providers.Result {
	return providers.Result{
		Provider: name,
		Success:  true,
		Score:    score(s),
		Verdict:  "ok",
		Fields:   map[string]any{"score": s, "nested": map[string]any{"k": "v"}},
		Cost:     cost,
	}
}

func meta(genre string) Meta {
	return Meta{
		ID:     "text_1_abcd",
		UserID: "u1",
		Title:  "Night Shift",
		Genre:  genre,
		Budget: budget.Context{Tier: budget.TierLow, Notes: "n"},
	}
}

func encode(t *testing.T, r Record) string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return string(b)
}

func TestMergeIsCommutative(t *testing.T) {
	rc := New()
	a := secondary(providers.RealityCheck, 6, 0.01)
	b := secondary(providers.Financial, 7, 0.02)
	c := providers.Failed(providers.Commercial, errors.New("timeout"))

	first := rc.Merge(meta("Horror"), craftOK("Thriller"), a, b, c)
	second := rc.Merge(meta("Horror"), c, b, craftOK("Thriller"), a)
	assert.Equal(t, encode(t, first), encode(t, second))
}

func TestMergeIsIdempotentAndDoesNotMutateInputs(t *testing.T) {
	rc := New()
	primary := craftOK("")
	sec := secondary(providers.Excellence, 7.5, 0.3)

	r1 := rc.Merge(meta(""), primary, sec)
	r1.Sections[providers.Craft].Fields["top_strengths"].([]any)[0] = "mutated"
	r2 := rc.Merge(meta(""), primary, sec)

	assert.Equal(t, []any{"voice", "pace"}, primary.Fields["top_strengths"])
	assert.Equal(t, encode(t, rc.Merge(meta(""), primary, sec)), encode(t, r2))
}

func TestMergeTotalOnEmptyInput(t *testing.T) {
	rec := New().Merge(Meta{})
	assert.Equal(t, DefaultGenre, rec.Genre)
	assert.Equal(t, CoverageNone, rec.Coverage)
	assert.Equal(t, 7.0, rec.OverallScore)
	assert.Equal(t, "Recommend", rec.Recommendation)
	assert.Zero(t, rec.TotalCost)
	assert.Zero(t, rec.ProviderCount)
	for name, schema := range providers.Schemas() {
		sec, ok := rec.Section(name)
		require.True(t, ok, name)
		assert.Equal(t, StatusMissing, sec.Status)
		for _, f := range schema.Fields {
			assert.Contains(t, sec.Fields, f.Name)
		}
	}
}

func TestDetectedGenreOnlyWhenGenreBlank(t *testing.T) {
	rc := New()

	withGenre := rc.Merge(meta("Horror"), craftOK("Thriller"))
	assert.Nil(t, withGenre.DetectedGenre)
	assert.Equal(t, "Horror", withGenre.Genre)

	blank := rc.Merge(meta("  "), craftOK("Thriller"))
	require.NotNil(t, blank.DetectedGenre)
	assert.Equal(t, "Thriller", *blank.DetectedGenre)
	assert.Equal(t, "Thriller", blank.Genre)

	noDetection := rc.Merge(meta(""), providers.Failed(providers.Craft, errors.New("boom")))
	assert.Nil(t, noDetection.DetectedGenre)
	assert.Equal(t, DefaultGenre, noDetection.Genre)
}

func TestFailedPrimaryUsesDefaultsAndSecondaryMean(t *testing.T) {
	rc := New()
	rec := rc.Merge(meta("Comedy"),
		providers.Failed(providers.Craft, errors.New("401 unauthorized")),
		secondary(providers.RealityCheck, 6, 0.10),
		secondary(providers.Financial, 7, 0.05),
	)

	craft := rec.Sections[providers.Craft]
	assert.Equal(t, StatusFailed, craft.Status)
	assert.Equal(t, "401 unauthorized", craft.Error)
	assert.Equal(t, "Analysis in progress.", craft.Fields["executive_summary"])
	require.NotNil(t, craft.Score)
	assert.Equal(t, 7.0, *craft.Score)

	assert.Equal(t, 6.5, rec.OverallScore)
	assert.Equal(t, "Consider", rec.Recommendation)
	assert.InDelta(t, 0.15, rec.TotalCost, 1e-12)
	assert.Equal(t, CoveragePartial, rec.Coverage)
	assert.Equal(t, []string{providers.Craft}, rec.Failed)
	assert.Equal(t, []string{providers.Financial, providers.RealityCheck}, rec.Succeeded)
}

func TestSkippedAndFailedAreDistinct(t *testing.T) {
	rec := New().Merge(meta("Drama"),
		craftOK(""),
		providers.Skipped(providers.MarketResearch),
		providers.Failed(providers.ImageGeneration, errors.New("quota")),
	)
	assert.Equal(t, []string{providers.MarketResearch}, rec.Skipped)
	assert.Equal(t, []string{providers.ImageGeneration}, rec.Failed)
	assert.Nil(t, rec.Sections[providers.ImageGeneration].Score)
	assert.Equal(t, "Further market research recommended", rec.Sections[providers.MarketResearch].Verdict)
	assert.Equal(t, 3, rec.ProviderCount)
	assert.Equal(t, 8.6, rec.OverallScore)
	assert.Equal(t, "Strong Recommend", rec.Recommendation)
}

func TestDuplicateResultsResolveIndependentlyOfOrder(t *testing.T) {
	rc := New()
	ok := secondary(providers.Commercial, 6, 0.2)
	bad := providers.Failed(providers.Commercial, errors.New("late"))
	assert.Equal(t,
		encode(t, rc.Merge(meta("Drama"), ok, bad)),
		encode(t, rc.Merge(meta("Drama"), bad, ok)))

	x := secondary(providers.Commercial, 5, 0.1)
	y := secondary(providers.Commercial, 9, 0.1)
	assert.Equal(t,
		encode(t, rc.Merge(meta("Drama"), x, y)),
		encode(t, rc.Merge(meta("Drama"), y, x)))
}

func TestUnknownProviderIsKept(t *testing.T) {
	rec := New().Merge(meta("Drama"), secondary("custom", 4, 0.01))
	sec, ok := rec.Section("custom")
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, sec.Status)
	assert.InDelta(t, 0.01, rec.TotalCost, 1e-12)
}
