package session

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a fresh session
type Factory func() (*Session, error)

// Store keeps the sessions of a long-running server by ID
type Store struct {
	factory Factory

	mu       sync.RWMutex
	sessions map[string]*Session
	fallback *Session
}

// NewStore creates a new Store whose sessions come from factory
func NewStore(factory Factory) *Store {
	return &Store{factory: factory, sessions: make(map[string]*Session)}
}

// Create starts and registers a new session
func (st *Store) Create() (*Session, error) {
	s, err := st.factory()
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()
	return s, nil
}

// Get returns the session with the given ID. An empty ID selects the default session,
// created on first use.
func (st *Store) Get(id string) (*Session, error) {
	if id == "" {
		return st.Default()
	}
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	return s, nil
}

// Default returns the shared session used when callers name none
func (st *Store) Default() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.fallback == nil {
		s, err := st.factory()
		if err != nil {
			return nil, err
		}
		st.fallback = s
		st.sessions[s.ID()] = s
	}
	return st.fallback, nil
}

// Delete forgets a session; deleting the default session replaces it on next use
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	if st.fallback != nil && st.fallback.ID() == id {
		st.fallback = nil
	}
	return true
}

// IDs lists the live session identifiers in order
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
