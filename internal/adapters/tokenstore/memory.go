package tokenstore

import (
	"context"
	"sync"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
)

// MemoryStore is a process-local slot.
type MemoryStore struct {
	mu         sync.RWMutex
	credential domain.Credential
}

var _ ports.TokenStore = (*MemoryStore)(nil)

func NewMemoryStore(initial domain.Credential) *MemoryStore {
	return &MemoryStore{credential: initial}
}

func (s *MemoryStore) Get(_ context.Context) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.credential.Empty() {
		return "", domain.ErrCredentialAbsent
	}
	return s.credential, nil
}

func (s *MemoryStore) Set(_ context.Context, credential domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credential = credential
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credential = ""
	return nil
}
