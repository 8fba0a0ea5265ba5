package application

import (
	"sync"

	"github.com/bnema/squarelink-cli/internal/domain"
)

// Action is a single state transition applied by the Store.
//
// Epoch must match the store's current epoch for the action to be applied,
// unless Reset is set. A reset action starts a new epoch, so actions tagged
// with any earlier epoch are dropped.
type Action struct {
	Name  string
	Epoch uint64
	Reset bool
	Apply func(*domain.Snapshot)
}

// Listener is notified with a copy of the state after each applied action.
// Listeners run on the dispatching goroutine and must not dispatch.
type Listener func(action string, snapshot domain.Snapshot)

type Store struct {
	mu        sync.Mutex
	state     domain.Snapshot
	epoch     uint64
	nextID    int
	listeners map[int]Listener
}

func NewStore() *Store {
	return &Store{
		state:     domain.Snapshot{State: domain.SessionUnauthenticated},
		listeners: map[int]Listener{},
	}
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.epoch
}

// Dispatch applies the action and reports whether it was applied.
func (s *Store) Dispatch(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action.Reset {
		s.epoch++
	} else if action.Epoch != s.epoch {
		return false
	}

	if action.Apply != nil {
		action.Apply(&s.state)
	}

	for _, listener := range s.listeners {
		listener(action.Name, s.state.Clone())
	}

	return true
}

// WhileCurrent runs fn only if epoch is still the current epoch. A Reset
// cannot start until fn returns, so side effects bound to a session are either
// done before the reset or skipped. fn must not dispatch.
func (s *Store) WhileCurrent(epoch uint64, fn func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false, nil
	}
	return true, fn()
}

// Subscribe registers a listener and returns the function that removes it.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
