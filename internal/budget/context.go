package budget

import (
	"fmt"
	"strconv"
	"strings"
)

// TierInfo describes the production implications of a tier.
type TierInfo struct {
	Name         string
	Description  string
	Casting      string
	Production   string
	Audience     string
	Distribution string
}

var tierInfo = map[Tier]TierInfo{
	TierMicro: {
		Name:         "Micro-budget",
		Description:  "Ultra-low budget independent films",
		Casting:      "Unknown actors, emerging talent, local actors willing to work for scale",
		Production:   "Single/few locations, minimal crew, practical effects only, handheld/basic camera work",
		Audience:     "Film festival circuit, art house audiences, streaming platforms",
		Distribution: "Festival circuit, then streaming/VOD, then limited theatrical",
	},
	TierLow: {
		Name:         "Low-budget",
		Description:  "Independent films with modest production values",
		Casting:      "Character actors, TV actors, one recognizable name possible",
		Production:   "Multiple locations possible, small crew, limited effects, professional equipment",
		Audience:     "Independent film audiences, genre fans, arthouse and mainstream crossover",
		Distribution: "Festival premiere, then platform release, then selective theatrical",
	},
	TierMid: {
		Name:         "Mid-budget",
		Description:  "Professional productions with established talent",
		Casting:      "Established character actors, TV stars, emerging film stars",
		Production:   "Multiple locations, full crew, moderate effects, professional production values",
		Audience:     "Mainstream genre audiences, star-driven demographics",
		Distribution: "Wide theatrical release, streaming after window, international sales",
	},
	TierHigh: {
		Name:         "High-budget",
		Description:  "Studio films with significant production values",
		Casting:      "A-list stars, established directors, proven talent packages",
		Production:   "Extensive locations, full studio resources, significant effects budget",
		Audience:     "Wide mainstream appeal, international markets, franchise potential",
		Distribution: "Wide theatrical release, major marketing campaign, global distribution",
	},
	TierTentpole: {
		Name:         "Tentpole",
		Description:  "Event films and franchise starters",
		Casting:      "Major stars, A-list directors, established franchises or IP",
		Production:   "Multiple units, extensive VFX, global locations, massive crew",
		Audience:     "Global audiences, all demographics, franchise/sequel potential required",
		Distribution: "Event release, massive marketing, global day-and-date, merchandising",
	},
}

// Info returns the description of t.
func (t Tier) Info() TierInfo {
	return tierInfo[t]
}

// Context is the budget information shared with every provider of one job.
type Context struct {
	UserBudget *float64  `json:"user_budget,omitempty"`
	Estimate   *Estimate `json:"estimate,omitempty"`
	Tier       Tier      `json:"tier,omitempty"`
	Notes      string    `json:"notes"`
}

// NewContext builds the job budget context. A positive user budget is categorized
// as-is; otherwise the screenplay is estimated.
func NewContext(userBudget *float64, text, title, genre string) Context {
	if userBudget != nil && *userBudget > 0 {
		amount := *userBudget
		tier := Categorize(amount)
		return Context{
			UserBudget: &amount,
			Tier:       tier,
			Notes:      fmt.Sprintf("User-specified budget: %s (%s tier)", FormatAmount(amount), tier),
		}
	}
	est := EstimateBudget(text, title, genre)
	return Context{
		Estimate: &est,
		Tier:     Categorize(est.Optimal),
		Notes:    "AI estimated budget range. " + est.Reasoning,
	}
}

// Prompt renders the context as a prompt section.
func (c Context) Prompt() string {
	var b strings.Builder
	switch {
	case c.UserBudget != nil:
		info := Categorize(*c.UserBudget).Info()
		fmt.Fprintf(&b, "**BUDGET ANALYSIS: %s (%s)**\n", info.Name, FormatAmount(*c.UserBudget))
		fmt.Fprintf(&b, "Production Context: %s\n", info.Description)
		fmt.Fprintf(&b, "Casting Strategy: %s\n", info.Casting)
		fmt.Fprintf(&b, "Production Notes: %s\n", info.Production)
		fmt.Fprintf(&b, "Target Audience: %s\n", info.Audience)
		fmt.Fprintf(&b, "Distribution: %s\n\n", info.Distribution)
		b.WriteString("Consider how this budget level affects all recommendations, especially casting suggestions and production feasibility.\n")
	case c.Estimate != nil:
		info := Categorize(c.Estimate.Optimal).Info()
		b.WriteString("**BUDGET ANALYSIS: AI Estimated**\n")
		fmt.Fprintf(&b, "Estimated Range: %s - %s\n", FormatAmount(c.Estimate.Min), FormatAmount(c.Estimate.Max))
		fmt.Fprintf(&b, "Optimal Budget: %s (%s)\n", FormatAmount(c.Estimate.Optimal), info.Name)
		fmt.Fprintf(&b, "Reasoning: %s\n\n", c.Estimate.Reasoning)
		fmt.Fprintf(&b, "Casting Strategy: %s\n", info.Casting)
		fmt.Fprintf(&b, "Production Notes: %s\n\n", info.Production)
		b.WriteString("Base recommendations on the optimal budget estimate unless story elements justify higher/lower range.\n")
	default:
		b.WriteString("**BUDGET ANALYSIS: To be determined**\n")
		b.WriteString("No budget specified - provide realistic budget recommendation based on story scope, genre requirements, and production complexity.\n")
	}
	return b.String()
}

// FormatAmount renders whole dollars with thousands separators, e.g. $12,500,000.
func FormatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatFloat(v, 'f', 0, 64)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
