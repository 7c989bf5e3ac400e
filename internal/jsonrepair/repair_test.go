package jsonrepair

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "overall_score": 8.5,
  "recommendation": "Recommend",
  "strengths": ["dialogue", "pacing \"tight\"", "tone"],
  "structure": {"act_one": {"score": 7, "notes": "clean setup"}, "twists": [1, 2.5, -3e2]},
  "flags": {"sequel": true, "remake": false, "ip": null},
  "logline": "A café owner fights back, ünïcode"
}`

func TestParseValidIsUnchanged(t *testing.T) {
	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(sample), &want))

	got, err := Parse(sample)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, sample, Balance(sample))
}

func TestParseProseAndFences(t *testing.T) {
	cases := map[string]string{
		"prose":  "Here is my analysis:\n" + sample + "\nLet me know if you need more.",
		"fenced": "```json\n" + sample + "\n```",
		"both":   "Sure!\n```json\n" + sample + "\n```\nThanks",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, 8.5, got["overall_score"])
		})
	}
}

func TestBalanceEveryTruncationParses(t *testing.T) {
	for cut := 1; cut < len(sample); cut++ {
		truncated := sample[:cut]
		repaired := Balance(truncated)
		if !json.Valid([]byte(repaired)) {
			t.Fatalf("cut at %d produced invalid JSON:\ninput: %q\noutput: %q", cut, truncated, repaired)
		}
	}
}

func TestParseTruncatedMidArray(t *testing.T) {
	input := `{"score": 6.5, "verdict": "Solid", "comparables": ["Alien", "The Thi`
	got, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, 6.5, got["score"])
	assert.Equal(t, []any{"Alien", "The Thi"}, got["comparables"])
}

func TestBalanceCases(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a": "hel`, `{"a": "hel"}`},
		{`{"a": 1, "ke`, `{"a": 1, "ke":null}`},
		{`{"a": [1, 2`, `{"a": [1, 2]}`},
		{`{"a": [1, `, `{"a": [1]}`},
		{`{"a": {"b": `, `{"a": {"b":null}}`},
		{`{"a": tr`, `{"a": true}`},
		{`{"a": 12.`, `{"a": 12}`},
		{`{"a": -`, `{"a":null}`},
		{`{"a": "x\`, `{"a": "x"}`},
		{`{"a": "x\u00`, `{"a": "x"}`},
		{`{"a": [{"b": 1}`, `{"a": [{"b": 1}]}`},
		{`{`, `{}`},
		{`{"a": 1,`, `{"a": 1}`},
	}
	for _, tc := range cases {
		got := Balance(tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
		assert.True(t, json.Valid([]byte(got)), "invalid output for %q: %q", tc.in, got)
	}
}

func TestParseUnparseable(t *testing.T) {
	_, err := Parse("no json here, score 7/10")
	require.ErrorIs(t, err, ErrUnparseable)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrUnparseable)
}

func TestScalarFallbacks(t *testing.T) {
	v, ok := ScalarFloat("Overall I'd give it 7.5/10.", OutOfTenPattern)
	require.True(t, ok)
	assert.Equal(t, 7.5, v)

	v, ok = ScalarFloat(`the "score": 8 is firm`, OutOfTenPattern, ScorePattern)
	require.True(t, ok)
	assert.Equal(t, 8.0, v)

	_, ok = ScalarFloat("nothing numeric", ScorePattern)
	assert.False(t, ok)

	s, ok := ScalarString(`{"verdict": "Strong \"pass\"", "score": `, "verdict")
	require.True(t, ok)
	assert.Equal(t, `Strong "pass"`, s)

	_, ok = ScalarString(`{"other": 1}`, "verdict")
	assert.False(t, ok)
}

func TestCleanStripsFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, Clean("```json\n{\"a\":1}\n```"))
	assert.True(t, strings.HasPrefix(Clean("  {\"a\":1}  "), "{"))
}
