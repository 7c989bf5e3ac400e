// Package orchestrator runs one screenplay analysis end to end: source-material
// detection, budget context, the primary analysis, the concurrent secondary
// fan-out, reconciliation, persistence and usage accounting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"screenplay-analyzer/internal/analyses"
	"screenplay-analyzer/internal/budget"
	"screenplay-analyzer/internal/progress"
	"screenplay-analyzer/internal/providers"
	"screenplay-analyzer/internal/reconcile"
	"screenplay-analyzer/internal/shared/metrics"
	"screenplay-analyzer/internal/shared/telemetry"
	"screenplay-analyzer/internal/shared/util"
	"screenplay-analyzer/internal/usage"
)

// Milestone percentages.
const (
	pctStarting        = 5
	pctSourceAnalysis  = 15
	pctSourceDone      = 20
	pctBudgetEstimated = 22
	pctPrimary         = 25
	pctPrimaryDone     = 50
	pctParallel        = 55
	pctParallelDone    = 88
	pctSaving          = 92
	pctComplete        = 100
)

// ProgressWriter records progress milestones.
type ProgressWriter interface {
	Update(ctx context.Context, id, stage string, pct int, message string, detail map[string]any) error
}

// UsageTracker appends usage records.
type UsageTracker interface {
	Track(ctx context.Context, rec usage.Record) error
}

// Orchestrator drives analyses. Progress and Usage are optional.
type Orchestrator struct {
	Primary     providers.Provider
	Secondaries []providers.Provider
	// Source runs before the primary to detect adapted material. Optional.
	Source     providers.Provider
	Progress   ProgressWriter
	Store      analyses.Store
	Usage      UsageTracker
	Reconciler *reconcile.Reconciler
	Now        func() time.Time
}

// Run analyzes sub and persists the record. A non-nil error means the job ended
// in the error state; provider failures alone never cause one.
func (o *Orchestrator) Run(ctx context.Context, sub analyses.Submission) (err error) {
	start := o.now()
	log := telemetry.L().With(
		zap.String("analysis_id", sub.ID),
		zap.String("user_id", sub.UserID),
		zap.String("request_id", analyses.RequestIDFromContext(ctx)),
	)
	var results []providers.Result

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("analysis.panic", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			err = o.fail(ctx, log, sub, fmt.Errorf("unexpected error: %v", rec), start)
			o.recordUsage(ctx, log, sub, results)
		}
	}()

	if err := o.Store.UpdateStatus(ctx, sub.ID, analyses.StatusProcessing, ""); err != nil {
		if errors.Is(err, analyses.ErrTerminal) {
			log.Warn("analysis.already_finished")
			return nil
		}
		return o.fail(ctx, log, sub, fmt.Errorf("set processing: %w", err), start)
	}
	metrics.IncAnalysisStarted()
	log.Info("analysis.status", zap.String("status", analyses.StatusProcessing), zap.String("status_transition", "pending->processing"))
	o.progress(ctx, sub.ID, progress.StageStarting, pctStarting, "Starting analysis", nil)

	req := providers.Request{
		SubmissionID: sub.ID,
		Title:        sub.Title,
		Text:         sub.Text,
		Genre:        sub.Genre,
		Extra:        map[string]any{},
	}

	// Source material and budget context. Neither can fail the job.
	if o.Source != nil {
		o.progress(ctx, sub.ID, progress.StageSourceAnalysis, pctSourceAnalysis, "Checking for source material", nil)
		res := o.call(ctx, log, o.Source, req)
		results = append(results, res)
		if res.Success {
			if found, _ := res.Fields["has_source_material"].(bool); found {
				req.Extra["source_material"] = fmt.Sprintf("%s: %s", res.String("source_type"), res.String("source_title"))
			}
			o.progress(ctx, sub.ID, progress.StageSourceComplete, pctSourceDone, "Source material check complete", map[string]any{
				"has_source_material": res.Fields["has_source_material"],
			})
		} else {
			o.progress(ctx, sub.ID, progress.StageSourceSkipped, pctSourceDone, "Source material check skipped", nil)
		}
	} else {
		o.progress(ctx, sub.ID, progress.StageSourceSkipped, pctSourceDone, "Source material check skipped", nil)
	}

	budgetCtx := budget.NewContext(sub.Budget, sub.Text, sub.Title, sub.Genre)
	req.BudgetContext = budgetCtx.Prompt()
	o.progress(ctx, sub.ID, progress.StageBudgetEstimated, pctBudgetEstimated, budgetCtx.Notes, map[string]any{
		"tier": string(budgetCtx.Tier),
	})

	// The primary strictly precedes the fan-out since its genre feeds the secondaries.
	o.progress(ctx, sub.ID, progress.StagePrimary, pctPrimary, "Running primary analysis", nil)
	primary := o.call(ctx, log, o.Primary, req)
	results = append(results, primary)
	if primary.Success {
		if req.Genre == "" {
			req.Genre = primary.String("genre")
		}
		if v := primary.String("one_line_verdict"); v != "" {
			req.Extra["logline"] = v
		}
		if primary.Score != nil {
			req.Extra["primary_score"] = *primary.Score
		}
		o.progress(ctx, sub.ID, progress.StagePrimaryComplete, pctPrimaryDone, "Primary analysis complete", map[string]any{
			"score": primary.ScoreOr(0),
		})
	} else {
		o.progress(ctx, sub.ID, progress.StagePrimaryFailed, pctPrimaryDone, "Primary analysis unavailable, continuing", map[string]any{
			"error": primary.Error,
		})
	}
	if req.Genre == "" {
		req.Genre = reconcile.DefaultGenre
	}

	o.progress(ctx, sub.ID, progress.StageParallel, pctParallel, "Running parallel analyses", map[string]any{
		"providers": len(o.Secondaries),
	})
	results = append(results, o.fanOut(ctx, log, sub.ID, req)...)

	o.progress(ctx, sub.ID, progress.StageSaving, pctSaving, "Saving results", nil)
	rc := o.Reconciler
	if rc == nil {
		rc = reconcile.New()
	}
	record := rc.Merge(reconcile.Meta{
		ID:     sub.ID,
		UserID: sub.UserID,
		Title:  sub.Title,
		Genre:  sub.Genre,
		Budget: budgetCtx,
	}, results...)

	if err := o.Store.Save(ctx, record); err != nil {
		failErr := o.fail(ctx, log, sub, fmt.Errorf("save record: %w", err), start)
		o.recordUsage(ctx, log, sub, results)
		return failErr
	}

	o.progress(ctx, sub.ID, progress.StageComplete, pctComplete, "Analysis complete", map[string]any{
		"overall_score":  record.OverallScore,
		"recommendation": record.Recommendation,
		"coverage":       record.Coverage,
		"total_cost":     record.TotalCost,
	})
	o.recordUsage(ctx, log, sub, results)

	elapsed := o.now().Sub(start)
	metrics.ObserveAnalysisFinished(analyses.StatusCompleted, elapsed.Seconds())
	log.Info("analysis.status",
		zap.String("status", analyses.StatusCompleted),
		zap.String("status_transition", "processing->completed"),
		zap.String("coverage", record.Coverage),
		zap.Strings("failed", record.Failed),
		zap.Strings("skipped", record.Skipped),
		zap.Float64("total_cost", record.TotalCost),
		zap.Duration("duration", elapsed),
	)
	return nil
}

// fanOut runs every secondary concurrently and waits for all of them. Each task
// owns its slot in the result slice and returns nil, so one failure never
// cancels a sibling.
func (o *Orchestrator) fanOut(ctx context.Context, log *zap.Logger, id string, req providers.Request) []providers.Result {
	out := make([]providers.Result, len(o.Secondaries))
	var (
		mu   sync.Mutex
		done int
	)
	total := len(o.Secondaries)

	var g errgroup.Group
	for i, p := range o.Secondaries {
		g.Go(func() error {
			res := o.call(ctx, log, p, req)
			out[i] = res

			mu.Lock()
			defer mu.Unlock()
			done++
			pct := pctParallel + done*(pctParallelDone-pctParallel)/total
			o.progress(ctx, id, progress.ProviderStage(res.Provider, milestone(res)), pct, milestoneMessage(res), map[string]any{
				"completed": done,
				"total":     total,
			})
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// call invokes one provider and settles the outcome into a Result, turning
// panics and inconsistent returns into failures.
func (o *Orchestrator) call(ctx context.Context, log *zap.Logger, p providers.Provider, req providers.Request) (res providers.Result) {
	name := p.Name()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("provider.panic", zap.String("provider", name), zap.Any("panic", rec))
			res = providers.Failed(name, fmt.Errorf("provider panic: %v", rec))
		}
		if !res.Skipped {
			metrics.ObserveProviderCall(name, res.Outcome(), res.Duration.Seconds(), res.Cost)
		}
	}()

	if !p.Enabled() {
		return providers.Skipped(name)
	}
	res, err := p.Analyze(ctx, req)
	if res.Provider == "" {
		res.Provider = name
	}
	switch {
	case errors.Is(err, providers.ErrDisabled):
		return providers.Skipped(name)
	case err != nil:
		res.Success = false
		res.Cost = 0
		if res.Error == "" {
			res.Error = providers.Failed(name, err).Error
		}
		log.Warn("provider.call", zap.String("provider", name), zap.String("outcome", providers.OutcomeFailed), zap.Error(err))
	default:
		log.Info("provider.call", zap.String("provider", name), zap.String("outcome", res.Outcome()))
	}
	return res
}

// fail moves the job to the error state and emits the terminal progress event.
func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, sub analyses.Submission, cause error, start time.Time) error {
	detail := sanitize(cause.Error())
	writeCtx := context.WithoutCancel(ctx)
	if err := o.Store.UpdateStatus(writeCtx, sub.ID, analyses.StatusError, detail); err != nil && !errors.Is(err, analyses.ErrTerminal) {
		log.Error("analysis.fail_update", zap.Error(err), zap.NamedError("cause", cause))
	}
	o.progress(writeCtx, sub.ID, progress.StageError, 0, "Analysis failed: "+detail, nil)
	metrics.ObserveAnalysisFinished(analyses.StatusError, o.now().Sub(start).Seconds())
	log.Error("analysis.status",
		zap.String("status", analyses.StatusError),
		zap.String("status_transition", "processing->error"),
		zap.String("error", detail),
	)
	return cause
}

// recordUsage writes one ledger entry per provider that was actually invoked.
func (o *Orchestrator) recordUsage(ctx context.Context, log *zap.Logger, sub analyses.Submission, results []providers.Result) {
	if o.Usage == nil {
		return
	}
	writeCtx := context.WithoutCancel(ctx)
	for _, r := range results {
		if r.Skipped || r.Provider == "" {
			continue
		}
		rec := usage.Record{
			UserID:       sub.UserID,
			AnalysisID:   sub.ID,
			Provider:     r.Provider,
			Model:        r.Model,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			Cost:         r.Cost,
			DurationMs:   r.Duration.Milliseconds(),
			Success:      r.Success,
			Error:        r.Error,
		}
		if err := o.Usage.Track(writeCtx, rec); err != nil {
			log.Warn("usage.record_failed", zap.String("provider", r.Provider), zap.Error(err))
		}
	}
}

func (o *Orchestrator) progress(ctx context.Context, id, stage string, pct int, message string, detail map[string]any) {
	if o.Progress == nil {
		return
	}
	_ = o.Progress.Update(ctx, id, stage, pct, message, detail)
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func milestone(r providers.Result) string {
	switch r.Outcome() {
	case providers.OutcomeSucceeded:
		return "complete"
	case providers.OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

func milestoneMessage(r providers.Result) string {
	switch r.Outcome() {
	case providers.OutcomeSucceeded:
		return r.Provider + " analysis complete"
	case providers.OutcomeSkipped:
		return r.Provider + " analysis skipped (not configured)"
	default:
		return r.Provider + " analysis failed"
	}
}

func sanitize(msg string) string {
	return util.SanitizeMessage(msg, 500)
}
