package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the latest event per analysis id.
type Store interface {
	Put(ctx context.Context, id string, e Event) error
	Get(ctx context.Context, id string) (Event, bool, error)
	Delete(ctx context.Context, id string) error
}

// sweeper is implemented by stores that need explicit eviction of old terminal entries.
type sweeper interface {
	Sweep(ctx context.Context, terminalBefore time.Time) int
}

// MemoryStore keeps events in process memory. Progress written by one process is
// invisible to another; use RedisStore when running several API replicas.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]Event
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: map[string]Event{}}
}

// Put replaces the event stored for id.
func (s *MemoryStore) Put(_ context.Context, id string, e Event) error {
	s.mu.Lock()
	s.events[id] = e
	s.mu.Unlock()
	return nil
}

// Get returns the event stored for id and whether one exists.
func (s *MemoryStore) Get(_ context.Context, id string) (Event, bool, error) {
	s.mu.RLock()
	e, ok := s.events[id]
	s.mu.RUnlock()
	return e, ok, nil
}

// Delete removes id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.events, id)
	s.mu.Unlock()
	return nil
}

// Sweep drops terminal events stamped before the cutoff and returns how many went.
func (s *MemoryStore) Sweep(_ context.Context, terminalBefore time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.events {
		if e.Terminal() && e.Timestamp.Before(terminalBefore) {
			delete(s.events, id)
			n++
		}
	}
	return n
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// RedisStore keeps events as JSON strings. Terminal events expire after
// Retention; in-flight events after ActiveTTL so crashed jobs do not linger.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	Retention time.Duration
	ActiveTTL time.Duration
}

// NewRedisStore stores events under the screenplay:progress: prefix.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &RedisStore{
		client:    client,
		prefix:    "screenplay:progress:",
		Retention: retention,
		ActiveTTL: 6 * time.Hour,
	}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

// Put writes e with the TTL for its phase.
func (s *RedisStore) Put(ctx context.Context, id string, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	ttl := s.ActiveTTL
	if e.Terminal() {
		ttl = s.Retention
	}
	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set progress: %w", err)
	}
	return nil
}

// Get decodes the stored event; a missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, id string) (Event, bool, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("redis get progress: %w", err)
	}
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, false, fmt.Errorf("decode progress: %w", err)
	}
	return e, true, nil
}

// Delete removes the key for id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
