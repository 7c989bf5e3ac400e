package usage

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger keeps records in memory and is safe for concurrent use.
type MemoryLedger struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLedger) Summary(ctx context.Context, userID string, since time.Time) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	sum := Summary{UserID: userID}
	all := map[string]bool{}
	monthly := map[string]bool{}
	for _, r := range l.records {
		if r.UserID != userID {
			continue
		}
		tokens := r.InputTokens + r.OutputTokens
		sum.TotalCost += r.Cost
		sum.TotalTokens += tokens
		all[r.AnalysisID] = true
		if !r.CreatedAt.Before(since) {
			sum.MonthlyCost += r.Cost
			sum.MonthlyTokens += tokens
			monthly[r.AnalysisID] = true
		}
		if sum.LastAnalysisAt == nil || r.CreatedAt.After(*sum.LastAnalysisAt) {
			t := r.CreatedAt
			sum.LastAnalysisAt = &t
		}
	}
	sum.TotalAnalyses = len(all)
	sum.MonthlyAnalyses = len(monthly)
	return sum, nil
}

// Records returns a copy of every stored record.
func (l *MemoryLedger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Record(nil), l.records...)
}
