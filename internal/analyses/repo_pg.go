package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"screenplay-analyzer/internal/reconcile"
)

// PGRepo implements Store using Postgres.
type PGRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func (r *PGRepo) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO screenplay_analyses (
	id, user_id, title, genre, budget, source, file_name, screenplay_text, text_length,
	status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.Title,
		a.Genre,
		nullFloat(a.Budget),
		a.Source,
		a.FileName,
		a.Text,
		a.TextLength,
		a.Status,
		a.CreatedAt,
	)
	return err
}

const selectColumns = `
SELECT id, user_id, title, genre, budget, source, file_name, text_length,
       status, error_detail, record, created_at, updated_at, completed_at
FROM screenplay_analyses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a           Analysis
		budget      sql.NullFloat64
		errDetail   sql.NullString
		record      []byte
		completedAt sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Title,
		&a.Genre,
		&budget,
		&a.Source,
		&a.FileName,
		&a.TextLength,
		&a.Status,
		&errDetail,
		&record,
		&a.CreatedAt,
		&a.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return Analysis{}, err
	}
	if budget.Valid {
		v := budget.Float64
		a.Budget = &v
	}
	if errDetail.Valid {
		a.Error = errDetail.String
	}
	if len(record) > 0 {
		var rec reconcile.Record
		if err := json.Unmarshal(record, &rec); err != nil {
			return Analysis{}, fmt.Errorf("decode record for %s: %w", a.ID, err)
		}
		a.Record = &rec
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

// Get returns an analysis by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Analysis, error) {
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

// UpdateStatus changes the job state unless it is already terminal.
func (r *PGRepo) UpdateStatus(ctx context.Context, id, status, errDetail string) error {
	const query = `
UPDATE screenplay_analyses
SET status = $2,
    error_detail = NULLIF($3, ''),
    updated_at = $4,
    completed_at = CASE WHEN $2 IN ('completed', 'error') THEN $4 ELSE completed_at END
WHERE id = $1 AND status NOT IN ('completed', 'error')`
	res, err := r.DB.ExecContext(ctx, query, id, status, errDetail, r.now())
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

// Save upserts the record and completes the job.
func (r *PGRepo) Save(ctx context.Context, rec reconcile.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	const query = `
INSERT INTO screenplay_analyses (
	id, user_id, title, genre, source, file_name, screenplay_text, text_length,
	status, record, overall_score, total_cost, created_at, updated_at, completed_at
)
VALUES ($1, $2, $3, $4, '', '', '', 0, 'completed', $5, $6, $7, $8, $8, $8)
ON CONFLICT (id) DO UPDATE
SET status = 'completed',
    error_detail = NULL,
    record = EXCLUDED.record,
    overall_score = EXCLUDED.overall_score,
    total_cost = EXCLUDED.total_cost,
    updated_at = EXCLUDED.updated_at,
    completed_at = EXCLUDED.completed_at
WHERE screenplay_analyses.status <> 'error'`
	res, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Title,
		rec.Genre,
		string(payload),
		rec.OverallScore,
		rec.TotalCost,
		r.now(),
	)
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, rec.ID)
}

// ListByUser returns a page of a user's analyses, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, selectColumns+`
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// checkAffected turns a guarded write that matched nothing into ErrNotFound or ErrTerminal.
func (r *PGRepo) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM screenplay_analyses WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrTerminal
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
