package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store keeps at most one State per identifier.
type Store interface {
	Get(ctx context.Context, identifier string) (State, bool, error)
	Set(ctx context.Context, state State) error
	Remove(ctx context.Context, identifier string) error
}

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(_ context.Context, identifier string) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[identifier]
	if !ok {
		return State{}, false, nil
	}
	return state.clone(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, state State) error {
	if state.Identifier == "" {
		return errors.New("conversation: identifier is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Identifier] = state.clone()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, identifier)
	return nil
}

// Len reports how many conversations are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// PruneIdle drops every state whose last activity is before cutoff and
// returns how many were removed.
func (s *MemoryStore) PruneIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, state := range s.states {
		if state.LastActivityAt.Before(cutoff) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

// RunJanitor prunes expired states every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, ttl, interval time.Duration, onPrune func(int)) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.PruneIdle(now.Add(-ttl)); n > 0 && onPrune != nil {
				onPrune(n)
			}
		}
	}
}
