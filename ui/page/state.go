package page

import (
	"sync"
	"time"
)

// State is the per-page bag of fetched data and view concerns.
type State[T any] struct {
	Data      T
	IsLoading bool
	Error     string
	Loaded    bool
	UpdatedAt time.Time
	View      ViewSelection
}

// Store guards a page's State. Render paths read through Read, action
// handlers and loaders mutate through Write.
type Store[T any] struct {
	mu sync.RWMutex
	st State[T]
}

// NewStore returns a Store in the loading state.
func NewStore[T any](view ViewSelection) *Store[T] {
	return &Store[T]{st: State[T]{IsLoading: true, View: view}}
}

// Read calls fn with the state under a read lock. fn must not retain
// references to maps inside the state.
func (s *Store[T]) Read(fn func(st *State[T])) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.st)
}

// Write calls fn with the state under the write lock.
func (s *Store[T]) Write(fn func(st *State[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// Snapshot returns a shallow copy of the state.
func (s *Store[T]) Snapshot() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// StartLoading marks the state as loading and clears the last error.
func (s *Store[T]) StartLoading() {
	s.Write(func(st *State[T]) {
		st.IsLoading = true
		st.Error = ""
	})
}

// Settle records the outcome of a fetch. On failure the previous data is
// kept and the error message is stored.
func (s *Store[T]) Settle(data T, err error) {
	s.Write(func(st *State[T]) {
		st.IsLoading = false
		if err != nil {
			st.Error = Message(err)
			return
		}
		st.Data = data
		st.Error = ""
		st.Loaded = true
		st.UpdatedAt = time.Now()
	})
}
