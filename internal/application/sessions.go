package application

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions tracks open pickup sessions for the HTTP surface.
type Sessions struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[uuid.UUID]*Session)}
}

func (r *Sessions) Open() *Session {
	s := NewSession()
	r.mu.Lock()
	r.byID[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Sessions) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close forgets the session. The caller cancels it first if needed.
func (r *Sessions) Close(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.byID, id)
	return s, nil
}

func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
