// Package session holds the per-session counters tracked across turns. The
// store is the only shared mutable state in the gateway and the sole
// serialization point for concurrent requests on one session.
package session

import (
	"context"
	"sync"
	"time"

	"mcp-gateway/internal/common/metrics"
)

// State is a snapshot returned by Touch: the turn count after the increment
// and the route recorded by the previous turn, if any.
type State struct {
	TurnCount    int64
	LastRoute    *string
	LastActiveAt time.Time
}

// Store tracks session state keyed by session id. Touch must be atomic: two
// concurrent calls for the same id never observe the same turn value.
type Store interface {
	// Touch increments the session's turn counter, creating the session on
	// first use, and returns the new count plus the previous route.
	Touch(ctx context.Context, sessionID string) (State, error)
	// SetRoute records the route served to the session's latest turn.
	SetRoute(ctx context.Context, sessionID, route string) error
	// Len reports the number of live sessions.
	Len() int
	Close() error
}

type memoryEntry struct {
	mu           sync.Mutex
	turnCount    int64
	lastRoute    *string
	lastActiveAt time.Time
}

// MemoryStore is the in-process backend: a guarded map of per-key entries so
// sessions never block each other, with a TTL janitor bounding growth.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry

	ttl    time.Duration
	done   chan struct{}
	closed sync.Once
}

// NewMemoryStore creates a store evicting sessions idle longer than ttl. A
// zero ttl disables eviction; sweepInterval is ignored in that case.
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		if sweepInterval <= 0 {
			sweepInterval = 5 * time.Minute
		}
		go s.janitor(sweepInterval)
	}
	return s
}

func (s *MemoryStore) entry(sessionID string) *memoryEntry {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[sessionID]; ok {
		return e
	}
	e = &memoryEntry{lastActiveAt: time.Now().UTC()}
	s.entries[sessionID] = e
	metrics.SessionsActive.Set(float64(len(s.entries)))
	return e
}

func (s *MemoryStore) Touch(_ context.Context, sessionID string) (State, error) {
	e := s.entry(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	prevRoute := e.lastRoute
	e.turnCount++
	e.lastActiveAt = time.Now().UTC()

	return State{
		TurnCount:    e.turnCount,
		LastRoute:    prevRoute,
		LastActiveAt: e.lastActiveAt,
	}, nil
}

func (s *MemoryStore) SetRoute(_ context.Context, sessionID, route string) error {
	e := s.entry(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastRoute = &route
	e.lastActiveAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	s.closed.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now().UTC())
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.mu.Lock()
		expired := now.Sub(e.lastActiveAt) > s.ttl
		e.mu.Unlock()
		if expired {
			delete(s.entries, id)
		}
	}
	metrics.SessionsActive.Set(float64(len(s.entries)))
}
