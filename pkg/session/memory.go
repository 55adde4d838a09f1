package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store. It's the default store and
// suitable for single-server deployments; use SQLStore when sessions must
// survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	done     chan struct{}
}

// MemoryStoreOption configures MemoryStore behavior.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired sessions are swept.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		c.cleanupInterval = d
	}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	cfg := &memoryStoreConfig{cleanupInterval: time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &MemoryStore{
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	go store.cleanupLoop(cfg.cleanupInterval)
	return store
}

// Save stores the session.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy to prevent callers mutating stored state.
	copied := *s
	m.sessions[s.ID] = &copied
	return nil
}

// Load retrieves a session if it exists and hasn't expired.
func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	s, ok := m.sessions[id]
	if !ok || s.Expired() {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.sessions, id)
	return nil
}

// Touch extends a session's expiry.
func (m *MemoryStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if s, ok := m.sessions[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

// Close stops the cleanup loop and drops all sessions.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	m.sessions = nil
	return nil
}

// Len reports the number of stored sessions, expired included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	for id, s := range m.sessions {
		if s.Expired() {
			delete(m.sessions, id)
		}
	}
}
