package analyses

import (
	"context"
	"sort"
	"sync"
	"time"

	"screenplay-analyzer/internal/reconcile"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Analysis
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Analysis),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if analysis.UpdatedAt.IsZero() {
		analysis.UpdatedAt = analysis.CreatedAt
	}
	r.byID[analysis.ID] = analysis
	return nil
}

// Get returns an analysis by its ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// UpdateStatus changes the job state unless it is already terminal.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, id, status, errDetail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if IsTerminal(analysis.Status) {
		return ErrTerminal
	}
	now := r.now()
	analysis.Status = status
	analysis.Error = errDetail
	analysis.UpdatedAt = now
	if IsTerminal(status) {
		analysis.CompletedAt = &now
	}
	r.byID[id] = analysis
	return nil
}

// Save stores the record and completes the job.
func (r *MemoryRepo) Save(ctx context.Context, rec reconcile.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[rec.ID]
	if ok && analysis.Status == StatusError {
		return ErrTerminal
	}
	now := r.now()
	if !ok {
		analysis = Analysis{Submission: Submission{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Title:     rec.Title,
			Genre:     rec.Genre,
			CreatedAt: now,
		}}
	}
	stored := rec
	analysis.Record = &stored
	analysis.Status = StatusCompleted
	analysis.Error = ""
	analysis.UpdatedAt = now
	analysis.CompletedAt = &now
	r.byID[rec.ID] = analysis
	return nil
}

// ListByUser returns a user's analyses, newest first, skipping the first offset.
// limit <= 0 returns the rest.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Analysis, 0)
	for _, a := range r.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(out) {
			return []Analysis{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
