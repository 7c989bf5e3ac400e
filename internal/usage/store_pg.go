package usage

import (
	"context"
	"database/sql"
	"time"
)

// PGLedger stores records in the usage_records table.
type PGLedger struct {
	DB *sql.DB
}

// NewPGLedger constructs a Postgres-backed ledger.
func NewPGLedger(db *sql.DB) *PGLedger {
	return &PGLedger{DB: db}
}

func (l *PGLedger) Append(ctx context.Context, rec Record) error {
	_, err := l.DB.ExecContext(ctx, `
INSERT INTO usage_records (
	id, user_id, analysis_id, provider, model, input_tokens, output_tokens,
	cost, duration_ms, success, error_message, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)`,
		rec.ID,
		rec.UserID,
		rec.AnalysisID,
		rec.Provider,
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
		rec.Cost,
		rec.DurationMs,
		rec.Success,
		rec.Error,
		rec.CreatedAt,
	)
	return err
}

func (l *PGLedger) Summary(ctx context.Context, userID string, since time.Time) (Summary, error) {
	const query = `
SELECT
	COALESCE(SUM(cost) FILTER (WHERE created_at >= $2), 0),
	COALESCE(SUM(cost), 0),
	COUNT(DISTINCT analysis_id) FILTER (WHERE created_at >= $2),
	COUNT(DISTINCT analysis_id),
	COALESCE(SUM(input_tokens + output_tokens) FILTER (WHERE created_at >= $2), 0),
	COALESCE(SUM(input_tokens + output_tokens), 0),
	MAX(created_at)
FROM usage_records
WHERE user_id = $1`
	sum := Summary{UserID: userID}
	var last sql.NullTime
	err := l.DB.QueryRowContext(ctx, query, userID, since).Scan(
		&sum.MonthlyCost,
		&sum.TotalCost,
		&sum.MonthlyAnalyses,
		&sum.TotalAnalyses,
		&sum.MonthlyTokens,
		&sum.TotalTokens,
		&last,
	)
	if err != nil {
		return Summary{}, err
	}
	if last.Valid {
		t := last.Time
		sum.LastAnalysisAt = &t
	}
	return sum, nil
}
