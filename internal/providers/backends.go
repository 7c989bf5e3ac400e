package providers

import (
	"strings"
	"time"
)

func pending(what string) string { return what + " pending." }

// CraftSchema is the primary backend's contract. Its genre field is the detected genre.
func CraftSchema() Schema {
	return Schema{
		ScoreField:       "overall_score",
		ScoreDefault:     7.0,
		ScoreMin:         0,
		ScoreMax:         10,
		VerdictField:     "recommendation",
		VerdictFromScore: RecommendationFromScore,
		VerdictAllowed:   Recommendations,
		Fields: []FieldSpec{
			{Name: "genre", Default: ""},
			{Name: "subgenre", Default: ""},
			{Name: "one_line_verdict", Default: "A screenplay with potential that needs development."},
			{Name: "executive_summary", Default: "Analysis in progress."},
			{Name: "structural_analysis", Default: pending("Structural assessment")},
			{Name: "character_analysis", Default: pending("Character evaluation")},
			{Name: "thematic_depth", Default: pending("Thematic analysis")},
			{Name: "craft_evaluation", Default: pending("Craft assessment")},
			{Name: "genre_mastery", Default: pending("Genre analysis")},
			{Name: "top_strengths", Default: []any{}},
			{Name: "key_weaknesses", Default: []any{}},
			{Name: "improvement_strategies", Default: []any{}},
			{Name: "commercial_viability", Default: "Market potential to be determined."},
			{Name: "target_audience", Default: "General audience."},
			{Name: "comparable_films", Default: []any{}},
			{Name: "casting_vision", Default: []any{}},
			{Name: "confidence", Default: 0.75, Min: 0, Max: 1},
		},
	}
}

// RealityCheckSchema is the cultural reality-check backend's contract.
func RealityCheckSchema() Schema {
	return Schema{
		ScoreField:     "score",
		ScoreDefault:   5.0,
		ScoreMin:       0,
		ScoreMax:       10,
		VerdictField:   "verdict",
		VerdictDefault: "Analysis completed",
		VerdictMaxLen:  200,
		Fields: []FieldSpec{
			{Name: "recommendation", Default: "Consider"},
			{Name: "confidence", Default: 0.7, Min: 0, Max: 1},
			{Name: "cultural_reality_check", Default: map[string]any{
				"cringe_factor":   5.0,
				"meme_potential":  "Low meme potential",
				"zeitgeist_score": 5.0,
			}},
			{Name: "brutal_honesty", Default: map[string]any{
				"protagonist_reality_check": "Protagonist assessment unclear",
				"production_reality":        "Production feasibility unclear",
			}},
			{Name: "controversy_radar", Default: map[string]any{
				"backlash_potential": "Minimal backlash expected",
				"polarization_level": "Low polarization",
			}},
			{Name: "think_piece_titles", Default: []any{}},
		},
	}
}

// CommercialSchema is the commercial-viability backend's contract.
func CommercialSchema() Schema {
	return Schema{
		ScoreField:     "score",
		ScoreDefault:   5.0,
		ScoreMin:       0,
		ScoreMax:       10,
		VerdictField:   "verdict",
		VerdictDefault: "Analysis completed",
		VerdictMaxLen:  200,
		Fields: []FieldSpec{
			{Name: "recommendation", Default: "Consider"},
			{Name: "confidence", Default: 0.7, Min: 0, Max: 1},
			{Name: "commercial_assessment", Default: map[string]any{
				"high_concept_score":   5.0,
				"target_demographics":  "General audience",
				"budget_range":         "Mid-budget",
				"franchise_potential":  "Limited",
				"international_appeal": "Moderate",
			}},
			{Name: "technical_craft", Default: map[string]any{
				"structure_score":       5.0,
				"character_development": "Adequate character work",
				"dialogue_quality":      "Functional dialogue",
			}},
			{Name: "industry_comparison", Default: map[string]any{
				"comparable_titles":      []any{},
				"competitive_advantage":  "Standard approach",
				"market_timing":          "Neutral timing",
				"studio_recommendations": []any{},
			}},
		},
	}
}

// ExcellenceSchema is the writing-excellence backend's contract.
func ExcellenceSchema() Schema {
	return Schema{
		ScoreField:       "score",
		ScoreDefault:     5.0,
		ScoreMin:         0,
		ScoreMax:         10,
		VerdictField:     "recommendation",
		VerdictFromScore: RecommendationFromScore,
		VerdictAllowed:   Recommendations,
		Fields: []FieldSpec{
			{Name: "verdict", Default: "Analysis completed"},
			{Name: "reasoning_depth", Default: "standard"},
			{Name: "writing_excellence", Default: map[string]any{
				"prose_quality":     "Competent",
				"voice_originality": "Developing voice",
				"scene_economy":     "Adequate",
			}},
			{Name: "award_potential", Default: "Limited"},
			{Name: "revision_priorities", Default: []any{}},
		},
	}
}

// FinancialSchema is the box-office and ROI modelling backend's contract.
func FinancialSchema() Schema {
	return Schema{
		ScoreField:     "overall_financial_score",
		ScoreDefault:   5.0,
		ScoreMin:       0,
		ScoreMax:       10,
		VerdictField:   "recommendation",
		VerdictDefault: "Further financial analysis recommended",
		Fields: []FieldSpec{
			{Name: "confidence_level", Default: 0.7, Min: 0, Max: 1},
			{Name: "box_office_prediction", Default: map[string]any{}},
			{Name: "roi_analysis", Default: map[string]any{}},
			{Name: "risk_assessment", Default: map[string]any{}},
			{Name: "budget_optimization", Default: map[string]any{}},
			{Name: "release_strategy", Default: map[string]any{}},
		},
	}
}

// MarketResearchSchema is the market-research backend's contract.
func MarketResearchSchema() Schema {
	return Schema{
		ScoreField:     "market_opportunity_score",
		ScoreDefault:   5.0,
		ScoreMin:       0,
		ScoreMax:       10,
		VerdictField:   "market_recommendation",
		VerdictDefault: "Further market research recommended",
		Fields: []FieldSpec{
			{Name: "market_trends", Default: map[string]any{}},
			{Name: "competitive_landscape", Default: map[string]any{}},
			{Name: "budget_benchmarks", Default: map[string]any{}},
			{Name: "competitive_advantage", Default: ""},
			{Name: "sources_cited", Default: []any{}},
		},
	}
}

// SourceMaterialSchema is the source-material detector's contract.
func SourceMaterialSchema() Schema {
	return Schema{
		Fields: []FieldSpec{
			{Name: "has_source_material", Default: false},
			{Name: "source_type", Default: "original"},
			{Name: "source_title", Default: ""},
			{Name: "source_author", Default: ""},
			{Name: "rights_notes", Default: ""},
			{Name: "confidence", Default: 0.0, Min: 0, Max: 1},
		},
	}
}

// ImageSchema is the poster generator's contract.
func ImageSchema() Schema {
	return Schema{
		Fields: []FieldSpec{
			{Name: "poster_urls", Default: []any{}},
			{Name: "best_poster_url", Default: ""},
			{Name: "success_count", Default: 0.0},
		},
	}
}

// Schemas returns the contract of every backend keyed by provider identifier.
func Schemas() map[string]Schema {
	return map[string]Schema{
		Craft:           CraftSchema(),
		RealityCheck:    RealityCheckSchema(),
		Commercial:      CommercialSchema(),
		Excellence:      ExcellenceSchema(),
		Financial:       FinancialSchema(),
		MarketResearch:  MarketResearchSchema(),
		ImageGeneration: ImageSchema(),
		SourceMaterial:  SourceMaterialSchema(),
	}
}

// NewCraft builds the primary backend.
func NewCraft(sender Sender, model string) *Client {
	schema := CraftSchema()
	return NewClient(Config{
		Name:     Craft,
		Model:    model,
		Sender:   sender,
		Policy:   OverloadPolicy(),
		Rates:    PerMillion(15, 75),
		Timeout:  180 * time.Second,
		MaxChars: 100_000,
		Schema:   schema,
		Build: promptSpec{
			system:    "You are a veteran studio script reader producing coverage for development executives.",
			task:      "Write professional coverage for this screenplay. Identify its genre and subgenre, evaluate structure, character, theme, craft and commercial viability, and score it from 0 to 10.",
			maxTokens: 4000,
		}.build(schema),
		Finalize: func(r *Result, _ Request) {
			r.Fields["genre"] = strings.TrimSpace(r.String("genre"))
		},
	})
}

// NewRealityCheck builds the cultural reality-check backend.
func NewRealityCheck(sender Sender, model string) *Client {
	schema := RealityCheckSchema()
	return NewClient(Config{
		Name:     RealityCheck,
		Model:    model,
		Sender:   sender,
		Policy:   NoRetry(),
		Rates:    Rates{Input: 0.00001, Output: 0.00003},
		Timeout:  90 * time.Second,
		MaxChars: 60_000,
		Schema:   schema,
		Build: promptSpec{
			system:    "You are a blunt cultural critic who knows how audiences and social media will react.",
			task:      "Give a brutally honest cultural reality check of this screenplay: authenticity, meme potential, zeitgeist fit and controversy risk. Score it from 0 to 10.",
			maxTokens: 3000,
		}.build(schema),
	})
}

// NewCommercial builds the commercial-viability backend.
func NewCommercial(sender Sender, model string) *Client {
	schema := CommercialSchema()
	return NewClient(Config{
		Name:     Commercial,
		Model:    model,
		Sender:   sender,
		Policy:   NoRetry(),
		Rates:    PerMillion(1.25, 10),
		Timeout:  60 * time.Second,
		MaxChars: 60_000,
		Schema:   schema,
		Build: promptSpec{
			system:    "You are a studio development executive focused on commercial potential.",
			task:      "Assess the commercial prospects and technical craft of this screenplay against comparable titles. Score it from 0 to 10.",
			maxTokens: 3000,
		}.build(schema),
	})
}

// NewExcellence builds the writing-excellence backend.
func NewExcellence(sender Sender, model string) *Client {
	schema := ExcellenceSchema()
	return NewClient(Config{
		Name:     Excellence,
		Model:    model,
		Sender:   sender,
		Policy:   NoRetry(),
		Rates:    Rates{Input: 0.00002, Output: 0.00008},
		Timeout:  120 * time.Second,
		MaxChars: 80_000,
		Schema:   schema,
		Build: promptSpec{
			system:    "You are an award-circuit screenwriting judge.",
			task:      "Evaluate the writing excellence of this screenplay: voice, prose, scene economy and award potential. Score it from 0 to 10.",
			maxTokens: 4000,
		}.build(schema),
	})
}

// NewFinancial builds the box-office modelling backend. It reads a short sample only.
func NewFinancial(sender Sender, model string) *Client {
	schema := FinancialSchema()
	return NewClient(Config{
		Name:     Financial,
		Model:    model,
		Sender:   sender,
		Policy:   NoRetry(),
		Rates:    PerMillion(0.55, 2.20),
		Timeout:  90 * time.Second,
		MaxChars: 8_000,
		Schema:   schema,
		Build: promptSpec{
			system:    "You are a film finance analyst who models box office and ROI scenarios.",
			task:      "Model the financial outlook of this film: P10/P50/P90 box office, ROI, risks, budget optimization and release strategy. Score financial viability from 0 to 10.",
			maxTokens: 4000,
		}.build(schema),
	})
}

// NewMarketResearch builds the market-research backend.
func NewMarketResearch(sender Sender, model string) *Client {
	schema := MarketResearchSchema()
	return NewClient(Config{
		Name:     MarketResearch,
		Model:    model,
		Sender:   sender,
		Policy:   NoRetry(),
		Rates:    PerMillion(1, 1),
		Timeout:  60 * time.Second,
		MaxChars: 4_000,
		Schema:   schema,
		Build: promptSpec{
			system:    "You are a film market researcher with access to current industry data.",
			task:      "Research the current market opportunity for this film: genre trends, competitive landscape and budget benchmarks. Cite sources. Score the market opportunity from 0 to 10.",
			maxTokens: 2500,
		}.build(schema),
	})
}

// NewSourceMaterial builds the source-material detector used before the primary analysis.
func NewSourceMaterial(sender Sender, model string) *Client {
	schema := SourceMaterialSchema()
	return NewClient(Config{
		Name:     SourceMaterial,
		Model:    model,
		Sender:   sender,
		Policy:   NoRetry(),
		Rates:    PerMillion(2.5, 10),
		Timeout:  60 * time.Second,
		MaxChars: 5_000,
		Schema:   schema,
		Build: promptSpec{
			system:    "You identify whether a screenplay adapts existing intellectual property.",
			task:      "From the title page and opening pages, decide whether this screenplay is based on source material (novel, comic, true story, game, remake) and name it.",
			maxTokens: 800,
		}.build(schema),
	})
}
