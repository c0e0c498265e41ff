package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the in-memory session registry. Sessions are created on first
// reference and evicted after sitting idle longer than the TTL. No
// persistence: a process restart loses all live sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger
}

func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// GetOrCreate returns the session for id, creating it on first reference.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s = newSession(id)
	st.sessions[id] = s
	return s
}

// Get returns the session for id, or nil when absent.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle since before the cutoff and reports how many
// were removed.
func (st *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	evicted := 0
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := s.LastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartReaper runs the idle sweep until ctx is cancelled.
func (st *Store) StartReaper(ctx context.Context) {
	interval := st.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := st.Sweep(now); n > 0 {
					st.logger.Info("evicted idle sessions", "count", n, "remaining", st.Len())
				}
			}
		}
	}()
}
