package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Info
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Info), now: time.Now}
}

// Get returns the live session for token. Expired entries are dropped.
func (s *MemoryStore) Get(_ context.Context, token string) (Info, error) {
	if token == "" {
		return Info{}, ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.sessions[token]
	if !ok {
		return Info{}, ErrNotFound
	}
	if info.Expired(s.now()) {
		delete(s.sessions, token)
		return Info{}, ErrNotFound
	}
	return info, nil
}

// Put stores info under its token.
func (s *MemoryStore) Put(_ context.Context, info Info) error {
	if info.Token == "" {
		return ErrInvalidToken
	}
	s.mu.Lock()
	s.sessions[info.Token] = info
	s.mu.Unlock()
	return nil
}

// Delete removes token.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Sweep drops every expired session and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for tok, info := range s.sessions {
		if info.Expired(now) {
			delete(s.sessions, tok)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
