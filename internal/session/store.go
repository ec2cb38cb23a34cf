// Package session holds per-conversation state in process memory.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or evicted session ids.
var ErrNotFound = errors.New("session not found")

type entry struct {
	state        *domain.ConversationState
	lastActivity time.Time
	// turn admits one holder at a time; see Acquire.
	turn chan struct{}
}

// Store maps session ids to conversation state.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a session with empty state and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{
		state:        &domain.ConversationState{},
		lastActivity: s.now(),
		turn:         make(chan struct{}, 1),
	}
	slog.Debug("Session created", "session_id", id)
	return id
}

// Get returns a copy of the session state and refreshes its activity time.
func (s *Store) Get(id string) (*domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastActivity = s.now()
	return e.state.Clone(), nil
}

// Update replaces the stored state and refreshes its activity time.
func (s *Store) Update(id string, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.state = state.Clone()
	e.lastActivity = s.now()
	return nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// EvictIdle removes sessions idle longer than maxIdle and returns how many
// were removed. Sessions with a turn in progress are skipped.
func (s *Store) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, e := range s.entries {
		if !e.lastActivity.Before(cutoff) {
			continue
		}
		select {
		case e.turn <- struct{}{}:
		default:
			slog.Debug("Skipping busy idle session", "session_id", id)
			continue
		}
		delete(s.entries, id)
		// Release so any waiter in Acquire observes the deletion.
		<-e.turn
		removed++
	}
	return removed
}

// Acquire blocks until the caller holds the session's turn slot or ctx is
// done. The returned release must be called exactly once.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The session may have been deleted while we waited.
	s.mu.RLock()
	current, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || current != e {
		<-e.turn
		return nil, ErrNotFound
	}

	var once sync.Once
	return func() { once.Do(func() { <-e.turn }) }, nil
}
