package loginsession

import (
	"fmt"
	"sync"
	"time"
)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]Session // sessionID -> Session
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory login session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Session),
	}
}

// Create stores a new login session
func (r *InMemoryRepo) Create(session Session) error {
	if session.ID == "" {
		return fmt.Errorf("[loginsession.Create] session id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("[loginsession.Create] session %s already exists", ShortID(session.ID))
	}
	r.sessions[session.ID] = session
	return nil
}

// Get retrieves a copy of a login session
func (r *InMemoryRepo) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	return session, ok
}

// Update overwrites a login session only while it still exists
func (r *InMemoryRepo) Update(session Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return false
	}
	r.sessions[session.ID] = session
	return true
}

// Delete removes a login session
func (r *InMemoryRepo) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *InMemoryRepo) Sweep(now time.Time, grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, session := range r.sessions {
		if session.ExpiresAt.Add(grace).Before(now) {
			delete(r.sessions, id)
			count++
		}
	}
	return count
}

func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
