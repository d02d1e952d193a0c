// Package inmemory keeps page sessions in a process-local map. Sessions
// past their expiry are pruned lazily on access.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/opendata-tw/roadwatch/internal/pager"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*pager.PageState
}

// NewStore creates an empty in-memory session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*pager.PageState)}
}

func (s *Store) Save(ctx context.Context, state *pager.PageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = state
	s.prune()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*pager.PageState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return nil, pager.ErrSessionNotFound
	}
	return state, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// prune drops sessions expired for over a minute. Recently expired ones
// stay so navigation can still answer with the expiry error. Caller holds
// the write lock.
func (s *Store) prune() {
	cutoff := time.Now().Add(-time.Minute)
	for id, state := range s.sessions {
		if state.ExpiresAt().Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

var _ pager.Store = (*Store)(nil)
