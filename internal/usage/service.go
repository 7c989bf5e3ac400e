package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"screenplay-analyzer/internal/shared/telemetry"
)

// Default monthly caps.
const (
	DefaultMonthlyCostLimit     = 50.0
	DefaultMonthlyAnalysisLimit = 100
	warnRatio                   = 0.8
)

// Ledger stores usage records.
type Ledger interface {
	Append(ctx context.Context, rec Record) error
	Summary(ctx context.Context, userID string, monthStart time.Time) (Summary, error)
}

// Service tracks provider spend and enforces the monthly caps.
type Service struct {
	ledger        Ledger
	CostLimit     float64
	AnalysisLimit int
	Now           func() time.Time
}

// NewService constructs a Service with an in-memory ledger.
func NewService() *Service {
	return NewServiceWithLedger(NewMemoryLedger())
}

// NewServiceWithLedger constructs a Service over ledger with the default caps.
func NewServiceWithLedger(ledger Ledger) *Service {
	return &Service{
		ledger:        ledger,
		CostLimit:     DefaultMonthlyCostLimit,
		AnalysisLimit: DefaultMonthlyAnalysisLimit,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Track appends rec, filling its id and timestamp.
func (s *Service) Track(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		telemetry.Error("usage.track_failed", map[string]any{
			"user_id":     rec.UserID,
			"analysis_id": rec.AnalysisID,
			"provider":    rec.Provider,
			"error":       err,
		})
		return err
	}
	telemetry.Info("usage.tracked", map[string]any{
		"user_id":     rec.UserID,
		"analysis_id": rec.AnalysisID,
		"provider":    rec.Provider,
		"cost":        rec.Cost,
		"tokens":      rec.InputTokens + rec.OutputTokens,
		"success":     rec.Success,
	})
	return nil
}

// Summary returns the user's usage totals.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	sum, err := s.ledger.Summary(ctx, userID, monthStart(s.now()))
	if err != nil {
		return Summary{}, err
	}
	sum.UserID = userID
	return sum, nil
}

// CheckLimits reports the user's standing. When a cap is reached the Limits are
// returned together with ErrLimitReached.
func (s *Service) CheckLimits(ctx context.Context, userID string) (Limits, error) {
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return Limits{}, err
	}
	l := Limits{
		WithinLimits:         true,
		MonthlyCostUsed:      sum.MonthlyCost,
		MonthlyCostLimit:     s.CostLimit,
		MonthlyAnalysesUsed:  sum.MonthlyAnalyses,
		MonthlyAnalysisLimit: s.AnalysisLimit,
		Warnings:             []string{},
	}

	if s.CostLimit > 0 {
		switch {
		case sum.MonthlyCost >= s.CostLimit:
			l.Warnings = append(l.Warnings, fmt.Sprintf("Monthly cost limit exceeded: $%.2f / $%.2f", sum.MonthlyCost, s.CostLimit))
			l.WithinLimits = false
		case sum.MonthlyCost >= s.CostLimit*warnRatio:
			l.Warnings = append(l.Warnings, fmt.Sprintf("Approaching monthly cost limit: $%.2f / $%.2f", sum.MonthlyCost, s.CostLimit))
		}
	}
	if s.AnalysisLimit > 0 {
		switch {
		case sum.MonthlyAnalyses >= s.AnalysisLimit:
			l.Warnings = append(l.Warnings, fmt.Sprintf("Monthly analysis limit exceeded: %d / %d", sum.MonthlyAnalyses, s.AnalysisLimit))
			l.WithinLimits = false
		case float64(sum.MonthlyAnalyses) >= float64(s.AnalysisLimit)*warnRatio:
			l.Warnings = append(l.Warnings, fmt.Sprintf("Approaching monthly analysis limit: %d / %d", sum.MonthlyAnalyses, s.AnalysisLimit))
		}
	}
	if !l.WithinLimits {
		return l, ErrLimitReached
	}
	return l, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
