// Package progress tracks per-analysis progress so clients can poll or stream it
// while the orchestrator works.
package progress

import "time"

// Stage names written by the orchestrator. Provider milestones are built with
// ProviderStage.
const (
	StageQueued          = "queued"
	StageStarting        = "starting"
	StageSourceAnalysis  = "source_analysis"
	StageSourceComplete  = "source_complete"
	StageSourceSkipped   = "source_skipped"
	StageBudgetEstimated = "budget_estimated"
	StagePrimary         = "primary_analysis"
	StagePrimaryComplete = "primary_complete"
	StagePrimaryFailed   = "primary_failed"
	StageParallel        = "parallel_analysis"
	StageSaving          = "saving"
	StageComplete        = "complete"
	StageError           = "error"
	StageUnknown         = "unknown"
)

// NotFoundMessage is reported for ids the tracker has never seen or already evicted.
const NotFoundMessage = "Analysis not found"

// Event is one progress snapshot.
type Event struct {
	Stage     string         `json:"stage"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Terminal reports whether no further events will follow.
func (e Event) Terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError || e.Progress >= 100
}

// NotFound is the event returned for unknown ids.
func NotFound() Event {
	return Event{Stage: StageUnknown, Progress: 0, Message: NotFoundMessage}
}

// ProviderStage names a per-provider milestone such as "financial_complete".
func ProviderStage(provider, outcome string) string {
	return provider + "_" + outcome
}

// Message kinds emitted by Stream.
const (
	KindProgress  = "progress"
	KindHeartbeat = "heartbeat"
	KindEnd       = "end"
)

// Message is one item of a progress stream.
type Message struct {
	Kind  string `json:"type"`
	Event Event  `json:"event"`
}
