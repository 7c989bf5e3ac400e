package usage

import "time"

// Record is one provider invocation charged to a user. Records are append-only.
type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AnalysisID   string    `json:"analysis_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary aggregates a user's records overall and since the start of the month.
type Summary struct {
	UserID          string     `json:"user_id"`
	MonthlyCost     float64    `json:"monthly_cost"`
	TotalCost       float64    `json:"total_cost"`
	MonthlyAnalyses int        `json:"monthly_analyses"`
	TotalAnalyses   int        `json:"total_analyses"`
	MonthlyTokens   int        `json:"monthly_tokens"`
	TotalTokens     int        `json:"total_tokens"`
	LastAnalysisAt  *time.Time `json:"last_analysis_at"`
}

// Limits reports a user's standing against the monthly caps.
type Limits struct {
	WithinLimits         bool     `json:"within_limits"`
	MonthlyCostUsed      float64  `json:"monthly_cost_used"`
	MonthlyCostLimit     float64  `json:"monthly_cost_limit"`
	MonthlyAnalysesUsed  int      `json:"monthly_analyses_used"`
	MonthlyAnalysisLimit int      `json:"monthly_analysis_limit"`
	Warnings             []string `json:"warnings"`
}
