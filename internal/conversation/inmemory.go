package conversation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	sess      *SessionContext
	expiresAt time.Time
}

// InMemoryStore keeps sessions in process memory with lazy TTL eviction.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
	}
}

func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*SessionContext, bool, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.ttl > 0 && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.sess.Clone(), true, nil
}

func (s *InMemoryStore) Put(_ context.Context, sess *SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = memoryEntry{
		sess:      sess.Clone(),
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *InMemoryStore) Evict(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
