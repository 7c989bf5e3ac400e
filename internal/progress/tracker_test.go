package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestReadUnknownReturnsNotFoundDefault(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), Options{})
	e := tr.Read(context.Background(), "nope")
	assert.Equal(t, StageUnknown, e.Stage)
	assert.Equal(t, 0, e.Progress)
	assert.Equal(t, NotFoundMessage, e.Message)
}

func TestUpdateOverwritesAndNeverRegresses(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tr := NewTracker(NewMemoryStore(), Options{Now: clock.Now})

	require.NoError(t, tr.Update(ctx, "a", StagePrimary, 25, "primary", nil))
	require.NoError(t, tr.Update(ctx, "a", StageParallel, 55, "parallel", map[string]any{"providers": 5}))
	e := tr.Read(ctx, "a")
	assert.Equal(t, StageParallel, e.Stage)
	assert.Equal(t, 55, e.Progress)
	assert.Equal(t, 5, e.Detail["providers"])

	require.NoError(t, tr.Update(ctx, "a", StageError, 0, "boom", nil))
	e = tr.Read(ctx, "a")
	assert.Equal(t, StageError, e.Stage)
	assert.Equal(t, 55, e.Progress)
}

func TestTerminalEventIsNotReplaced(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), Options{})
	require.NoError(t, tr.Update(ctx, "a", StageComplete, 100, "done", nil))
	require.NoError(t, tr.Update(ctx, "a", StageSaving, 92, "late", nil))
	assert.Equal(t, StageComplete, tr.Read(ctx, "a").Stage)
}

// flakyStore fails reads while readErr is set.
type flakyStore struct {
	*MemoryStore
	readErr error
}

func (s *flakyStore) Get(ctx context.Context, id string) (Event, bool, error) {
	if s.readErr != nil {
		return Event{}, false, s.readErr
	}
	return s.MemoryStore.Get(ctx, id)
}

func TestUpdateIsDroppedWhenPreviousEventUnreadable(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	tr := NewTracker(store, Options{})

	require.NoError(t, tr.Update(ctx, "a", StageComplete, 100, "done", nil))
	store.readErr = errors.New("redis: connection reset")
	err := tr.Update(ctx, "a", ProviderStage("financial", "complete"), 70, "late", nil)
	require.ErrorIs(t, err, store.readErr)

	store.readErr = nil
	e := tr.Read(ctx, "a")
	assert.Equal(t, StageComplete, e.Stage)
	assert.Equal(t, 100, e.Progress)
}

func TestProgressIsClamped(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), Options{})
	require.NoError(t, tr.Update(ctx, "a", StageStarting, -5, "", nil))
	assert.Equal(t, 0, tr.Read(ctx, "a").Progress)
	require.NoError(t, tr.Update(ctx, "b", StageComplete, 150, "", nil))
	assert.Equal(t, 100, tr.Read(ctx, "b").Progress)
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tr := NewTracker(NewMemoryStore(), Options{Now: clock.Now})
	require.NoError(t, tr.Update(ctx, "a", StageStarting, 5, "", nil))
	first := tr.Read(ctx, "a").Timestamp
	require.NoError(t, tr.Update(ctx, "a", StageSourceAnalysis, 15, "", nil))
	assert.True(t, tr.Read(ctx, "a").Timestamp.After(first))
}

func TestTerminalEntriesAreEvictedAfterRetention(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore()
	tr := NewTracker(store, Options{Now: clock.Now, Retention: 10 * time.Minute})

	require.NoError(t, tr.Update(ctx, "done", StageComplete, 100, "ok", nil))
	require.NoError(t, tr.Update(ctx, "running", StagePrimary, 25, "", nil))

	clock.Advance(5 * time.Minute)
	assert.Equal(t, StageComplete, tr.Read(ctx, "done").Stage)

	clock.Advance(6 * time.Minute)
	require.NoError(t, tr.Update(ctx, "other", StageStarting, 5, "", nil))
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, StageUnknown, tr.Read(ctx, "done").Stage)
	assert.Equal(t, StagePrimary, tr.Read(ctx, "running").Stage)
}

func TestStreamEmitsEventsUntilTerminal(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore(), Options{Interval: time.Millisecond, MaxIdle: 1000})
	require.NoError(t, tr.Update(ctx, "a", StageStarting, 5, "starting", nil))

	var (
		mu   sync.Mutex
		msgs []Message
	)
	done := make(chan error, 1)
	go func() {
		done <- tr.Stream(ctx, "a", func(m Message) error {
			mu.Lock()
			msgs = append(msgs, m)
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, tr.Update(ctx, "a", StagePrimary, 25, "primary", nil))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, tr.Update(ctx, "a", StageComplete, 100, "complete", nil))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	var stages []string
	for _, m := range msgs {
		if m.Kind == KindProgress {
			stages = append(stages, m.Event.Stage)
		}
	}
	assert.Equal(t, []string{StageStarting, StagePrimary, StageComplete}, stages)
	last := msgs[len(msgs)-1]
	assert.Equal(t, KindEnd, last.Kind)
	assert.Equal(t, StreamEndedMessage, last.Event.Message)
	assert.Equal(t, 100, last.Event.Progress)
}

func TestStreamStopsAfterMaxIdleHeartbeats(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), Options{Interval: time.Millisecond, MaxIdle: 3})
	var msgs []Message
	err := tr.Stream(context.Background(), "never-started", func(m Message) error {
		msgs = append(msgs, m)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for _, m := range msgs[:3] {
		assert.Equal(t, KindHeartbeat, m.Kind)
	}
	assert.Equal(t, KindEnd, msgs[3].Kind)
	assert.Equal(t, StreamEndedMessage, msgs[3].Event.Message)
}

func TestStreamReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTracker(NewMemoryStore(), Options{Interval: time.Hour})
	cancel()
	err := tr.Stream(ctx, "a", func(Message) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisStoreRoundTripAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	store := NewRedisStore(rdb, 10*time.Minute)
	tr := NewTracker(store, Options{})

	require.NoError(t, tr.Update(ctx, "r1", StagePrimary, 25, "primary", map[string]any{"provider": "craft"}))
	e := tr.Read(ctx, "r1")
	assert.Equal(t, StagePrimary, e.Stage)
	assert.Equal(t, "craft", e.Detail["provider"])
	assert.Equal(t, 6*time.Hour, mr.TTL("screenplay:progress:r1"))

	require.NoError(t, tr.Update(ctx, "r1", StageComplete, 100, "done", nil))
	assert.Equal(t, 10*time.Minute, mr.TTL("screenplay:progress:r1"))

	mr.FastForward(11 * time.Minute)
	assert.Equal(t, StageUnknown, tr.Read(ctx, "r1").Stage)
}

func TestProviderStage(t *testing.T) {
	assert.Equal(t, "financial_complete", ProviderStage("financial", "complete"))
}
