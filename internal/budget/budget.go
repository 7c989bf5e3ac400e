// Package budget estimates a production budget range from screenplay text and
// classifies amounts into tiers. Everything here is pure and deterministic.
package budget

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Tier is an ordered budget category.
type Tier string

const (
	TierMicro    Tier = "micro"
	TierLow      Tier = "low"
	TierMid      Tier = "mid"
	TierHigh     Tier = "high"
	TierTentpole Tier = "tentpole"
)

// Tiers lists every tier from cheapest to most expensive.
var Tiers = []Tier{TierMicro, TierLow, TierMid, TierHigh, TierTentpole}

// Rank returns the position of t in Tiers, or -1 for an unknown tier.
func (t Tier) Rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}

const (
	microCeiling = 1_000_000
	lowCeiling   = 5_000_000
	midCeiling   = 20_000_000
	highCeiling  = 50_000_000

	// MaxBudget caps every estimate.
	MaxBudget = 500_000_000

	maxUserBudget = 1_000_000_000
	minUserBudget = 1_000
)

// Categorize maps an amount to exactly one tier.
func Categorize(amount float64) Tier {
	switch {
	case amount < microCeiling:
		return TierMicro
	case amount < lowCeiling:
		return TierLow
	case amount < midCeiling:
		return TierMid
	case amount < highCeiling:
		return TierHigh
	default:
		return TierTentpole
	}
}

var (
	ErrNegativeBudget = errors.New("budget cannot be negative")
	ErrBudgetTooLarge = errors.New("budget exceeds maximum of $1B")
	ErrBudgetTooSmall = errors.New("budget must be at least $1,000 if specified")
)

// ValidateUserBudget rejects user-declared budgets outside the accepted range.
// Zero means "not specified" and is accepted.
func ValidateUserBudget(v float64) error {
	switch {
	case math.IsNaN(v) || v < 0:
		return ErrNegativeBudget
	case v > maxUserBudget:
		return ErrBudgetTooLarge
	case v > 0 && v < minUserBudget:
		return ErrBudgetTooSmall
	}
	return nil
}

// Estimate is a budget range with the reasoning that produced it.
type Estimate struct {
	Min       float64 `json:"min"`
	Optimal   float64 `json:"optimal"`
	Max       float64 `json:"max"`
	Reasoning string  `json:"reasoning"`
}

type baseRange struct {
	min, optimal, max float64
}

var genreBase = map[string]baseRange{
	"horror":   {500_000, 3_000_000, 15_000_000},
	"thriller": {2_000_000, 8_000_000, 25_000_000},
	"drama":    {1_000_000, 5_000_000, 20_000_000},
	"comedy":   {3_000_000, 12_000_000, 35_000_000},
	"action":   {15_000_000, 40_000_000, 150_000_000},
	"sci-fi":   {10_000_000, 35_000_000, 200_000_000},
	"fantasy":  {20_000_000, 60_000_000, 300_000_000},
	"romance":  {2_000_000, 8_000_000, 25_000_000},
	"mystery":  {3_000_000, 10_000_000, 30_000_000},
	"crime":    {5_000_000, 15_000_000, 50_000_000},
}

var defaultBase = baseRange{2_000_000, 10_000_000, 40_000_000}

type factor struct {
	keyword    string
	multiplier float64
	reason     string
}

var locationFactors = []factor{
	{"multiple countries", 1.5, "international locations"},
	{"exotic location", 1.3, "exotic locations"},
	{"period setting", 1.4, "period setting requirements"},
	{"historical", 1.3, "historical setting"},
	{"space", 2.0, "space/futuristic setting"},
	{"underwater", 1.8, "underwater sequences"},
	{"desert", 1.2, "remote location filming"},
}

var vfxFactors = []factor{
	{"explosion", 1.3, "explosion sequences"},
	{"cgi", 1.4, "CGI requirements"},
	{"creature", 1.5, "creature/monster effects"},
	{"supernatural", 1.4, "supernatural effects"},
	{"flying", 1.3, "flying/aerial sequences"},
	{"car chase", 1.2, "vehicle action sequences"},
	{"gun fight", 1.1, "action sequences"},
	{"magic", 1.6, "magical effects"},
}

var scaleFactors = []factor{
	{"army", 1.4, "military/army sequences"},
	{"crowd", 1.2, "crowd scenes"},
	{"stadium", 1.3, "large venue sequences"},
	{"city", 1.1, "urban filming complexity"},
}

const (
	largeCastThreshold = 20
	smallCastThreshold = 5
	largeCastFactor    = 1.2
	smallCastFactor    = 0.8
)

// EstimateBudget derives a budget range from the screenplay. title does not
// influence the numbers.
func EstimateBudget(text, title, genre string) Estimate {
	_ = title
	if strings.TrimSpace(genre) == "" {
		genre = "Drama"
	}
	base, ok := genreBase[normalizeGenre(genre)]
	if !ok {
		base = defaultBase
	}

	lower := strings.ToLower(text)
	multiplier := 1.0
	var reasons []string
	apply := func(factors []factor) {
		for _, f := range factors {
			if strings.Contains(lower, f.keyword) {
				multiplier *= f.multiplier
				reasons = append(reasons, f.reason)
			}
		}
	}

	apply(locationFactors)
	apply(vfxFactors)
	// Naive cast-size proxy.
	switch n := strings.Count(lower, "character"); {
	case n > largeCastThreshold:
		multiplier *= largeCastFactor
		reasons = append(reasons, "large ensemble cast")
	case n < smallCastThreshold:
		multiplier *= smallCastFactor
		reasons = append(reasons, "minimal cast requirements")
	}
	apply(scaleFactors)

	reasoning := fmt.Sprintf("Based on %s genre baseline", genre)
	if len(reasons) > 0 {
		reasoning += " with adjustments for: " + strings.Join(reasons, ", ")
	}
	reasoning += fmt.Sprintf(". Genre base range: %s-%s, adjusted by %.1fx multiplier.",
		FormatAmount(base.min), FormatAmount(base.max), multiplier)

	return Estimate{
		Min:       math.Min(base.min*multiplier, MaxBudget),
		Optimal:   math.Min(base.optimal*multiplier, MaxBudget),
		Max:       math.Min(base.max*multiplier, MaxBudget),
		Reasoning: reasoning,
	}
}

func normalizeGenre(genre string) string {
	g := strings.ToLower(strings.TrimSpace(genre))
	switch g {
	case "scifi", "sci fi", "science fiction":
		return "sci-fi"
	}
	return g
}
