package analyses

import (
	"context"

	"screenplay-analyzer/internal/reconcile"
)

// Store persists submissions, their job state and the final record.
type Store interface {
	Create(ctx context.Context, analysis Analysis) error
	Get(ctx context.Context, id string) (Analysis, error)
	// UpdateStatus moves a job to status. A terminal job is left untouched and
	// ErrTerminal is returned.
	UpdateStatus(ctx context.Context, id, status, errDetail string) error
	// Save upserts the record and marks the job completed. Saving over an errored
	// job returns ErrTerminal; saving a completed job again replaces its record.
	Save(ctx context.Context, rec reconcile.Record) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
}
