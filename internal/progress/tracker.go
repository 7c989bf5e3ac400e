package progress

import (
	"context"
	"sync"
	"time"

	"screenplay-analyzer/internal/shared/telemetry"
)

// StreamEndedMessage closes every stream.
const StreamEndedMessage = "Stream ended"

// Options tune a Tracker. Zero values take the defaults.
type Options struct {
	// Interval between stream polls and heartbeats.
	Interval time.Duration
	// MaxIdle is the number of consecutive heartbeats after which a stream gives up.
	MaxIdle int
	// Retention keeps terminal events readable for this long.
	Retention time.Duration
	Now       func() time.Time
}

// Tracker records progress events and serves them to pollers and streams.
type Tracker struct {
	store Store
	opts  Options

	mu        sync.Mutex
	lastSweep time.Time
}

// NewTracker builds a Tracker over store, filling zero Options with defaults.
func NewTracker(store Store, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = 300
	}
	if opts.Retention <= 0 {
		opts.Retention = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{store: store, opts: opts}
}

// Update records a new event for id. Progress is clamped to 0..100 and never
// moves backwards; a terminal event is never replaced. When the previous event
// cannot be read the update is dropped. Store failures are logged and returned,
// but callers usually carry on since progress is advisory.
func (t *Tracker) Update(ctx context.Context, id, stage string, pct int, message string, detail map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.opts.Now()
	t.sweepLocked(ctx, now)

	prev, ok, err := t.store.Get(ctx, id)
	if err != nil {
		// Without the previous event neither the terminal nor the monotonic guard can hold.
		telemetry.Warn("progress.read_failed", map[string]any{"analysis_id": id, "stage": stage, "error": err})
		return err
	}
	if ok && prev.Terminal() {
		return nil
	}

	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	ts := now
	if ok {
		if prev.Progress > pct {
			pct = prev.Progress
		}
		if !ts.After(prev.Timestamp) {
			ts = prev.Timestamp.Add(time.Nanosecond)
		}
	}

	e := Event{Stage: stage, Progress: pct, Message: message, Detail: detail, Timestamp: ts}
	if err := t.store.Put(ctx, id, e); err != nil {
		telemetry.Warn("progress.write_failed", map[string]any{"analysis_id": id, "stage": stage, "error": err})
		return err
	}
	return nil
}

// Read returns the latest event for id or the not-found default.
func (t *Tracker) Read(ctx context.Context, id string) Event {
	e, ok, err := t.store.Get(ctx, id)
	if err != nil {
		telemetry.Warn("progress.read_failed", map[string]any{"analysis_id": id, "error": err})
		return NotFound()
	}
	if !ok {
		return NotFound()
	}
	if e.Terminal() && t.opts.Now().Sub(e.Timestamp) > t.opts.Retention {
		_ = t.store.Delete(ctx, id)
		return NotFound()
	}
	return e
}

// Stream emits the current event, then every newer event, with a heartbeat on
// each interval where nothing changed. It stops on a terminal event, after
// MaxIdle consecutive heartbeats, or when ctx is done. Unless ctx was cancelled
// the last message is always a KindEnd message.
func (t *Tracker) Stream(ctx context.Context, id string, emit func(Message) error) error {
	var last time.Time
	current := t.Read(ctx, id)
	if current.Stage != StageUnknown {
		if err := emit(Message{Kind: KindProgress, Event: current}); err != nil {
			return err
		}
		last = current.Timestamp
	}

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	idle := 0
	for !current.Terminal() && idle < t.opts.MaxIdle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		current = t.Read(ctx, id)
		if current.Stage != StageUnknown && current.Timestamp.After(last) {
			last = current.Timestamp
			idle = 0
			if err := emit(Message{Kind: KindProgress, Event: current}); err != nil {
				return err
			}
			continue
		}
		idle++
		hb := Event{
			Stage:     KindHeartbeat,
			Progress:  current.Progress,
			Message:   current.Message,
			Timestamp: t.opts.Now(),
		}
		if err := emit(Message{Kind: KindHeartbeat, Event: hb}); err != nil {
			return err
		}
	}

	return emit(Message{Kind: KindEnd, Event: Event{
		Stage:     current.Stage,
		Progress:  current.Progress,
		Message:   StreamEndedMessage,
		Timestamp: t.opts.Now(),
	}})
}

func (t *Tracker) sweepLocked(ctx context.Context, now time.Time) {
	sw, ok := t.store.(sweeper)
	if !ok || now.Sub(t.lastSweep) < t.opts.Retention/10 {
		return
	}
	t.lastSweep = now
	if n := sw.Sweep(ctx, now.Add(-t.opts.Retention)); n > 0 {
		telemetry.Info("progress.evicted", map[string]any{"count": n})
	}
}
