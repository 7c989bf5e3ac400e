// Package jobqueue bounds how many analysis jobs run at once. Submissions beyond
// the worker count wait in FIFO order; Submit itself never blocks.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"screenplay-analyzer/internal/shared/metrics"
	"screenplay-analyzer/internal/shared/telemetry"
)

// ErrClosed is returned by Submit after Close or after the worker context ends.
var ErrClosed = errors.New("job queue closed")

// ErrDropped is passed to OnFinish for jobs still queued when the worker context ends.
var ErrDropped = errors.New("job dropped before it ran")

// DefaultWorkers is the number of analyses allowed to run concurrently.
const DefaultWorkers = 3

// Job is one unit of work.
type Job struct {
	ID   string
	Work func(context.Context) error
	// OnFinish, when set, observes the job's error (nil on success).
	OnFinish func(error)
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Queued    int
	Running   int
	Workers   int
	Processed uint64
	Failed    uint64
}

// Queue is an unbounded FIFO served by a fixed worker pool.
type Queue struct {
	workers int
	timeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Job
	started bool
	closed  bool
	running int

	wg        sync.WaitGroup
	processed atomic.Uint64
	failed    atomic.Uint64
}

// New builds a queue with the given worker count. timeout bounds each job; zero
// leaves jobs unbounded.
func New(workers int, timeout time.Duration) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	q := &Queue{workers: workers, timeout: timeout}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the workers. Jobs run under ctx, not under the submitter's context.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		q.mu.Lock()
		q.closed = true
		dropped := q.pending
		q.pending = nil
		q.cond.Broadcast()
		running := q.running
		q.mu.Unlock()

		metrics.SetQueueDepth(0, running)
		for _, j := range dropped {
			q.drop(j, ctx.Err())
		}
	}()
}

// Submit registers a job and returns immediately.
func (q *Queue) Submit(j Job) error {
	if j.Work == nil {
		return fmt.Errorf("job %s has no work", j.ID)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, j)
	queued, running := len(q.pending), q.running
	q.cond.Signal()
	q.mu.Unlock()

	metrics.SetQueueDepth(queued, running)
	telemetry.Info("queue.submitted", map[string]any{"job_id": j.ID, "queued": queued, "running": running})
	return nil
}

// Close stops accepting jobs and waits for queued and running jobs to finish,
// or for ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports queue depth and counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queued:    len(q.pending),
		Running:   q.running,
		Workers:   q.workers,
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
	}
}

func (q *Queue) next(ctx context.Context) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 {
		if q.closed || ctx.Err() != nil {
			return Job{}, false
		}
		q.cond.Wait()
	}
	if ctx.Err() != nil {
		return Job{}, false
	}
	j := q.pending[0]
	q.pending[0] = Job{}
	q.pending = q.pending[1:]
	q.running++
	metrics.SetQueueDepth(len(q.pending), q.running)
	return j, true
}

// drop reports a job that never ran so its owner can settle its state.
func (q *Queue) drop(j Job, cause error) {
	q.failed.Add(1)
	err := fmt.Errorf("%w: %v", ErrDropped, cause)
	telemetry.Warn("queue.job_dropped", map[string]any{"job_id": j.ID, "error": err})
	if j.OnFinish != nil {
		j.OnFinish(err)
	}
}

func (q *Queue) release() {
	q.mu.Lock()
	q.running--
	metrics.SetQueueDepth(len(q.pending), q.running)
	q.mu.Unlock()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		j, ok := q.next(ctx)
		if !ok {
			return
		}
		q.handle(ctx, j)
	}
}

func (q *Queue) handle(ctx context.Context, j Job) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.ID, r)
		}
		q.release()
		q.processed.Add(1)
		if err != nil {
			q.failed.Add(1)
		}
		if j.OnFinish != nil {
			j.OnFinish(err)
		}
		fields := map[string]any{"job_id": j.ID, "duration_ms": time.Since(start).Milliseconds()}
		if err != nil {
			fields["error"] = err
			telemetry.Error("queue.job_failed", fields)
			return
		}
		telemetry.Info("queue.job_done", fields)
	}()

	jobCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	err = j.Work(jobCtx)
}
