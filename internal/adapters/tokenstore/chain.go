package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
)

// ChainStore reads and writes the primary slot, falling back to the secondary
// when the primary backend fails.
type ChainStore struct {
	primary  ports.TokenStore
	fallback ports.TokenStore
}

var _ ports.TokenStore = (*ChainStore)(nil)

var (
	errNilPrimaryStore  = errors.New("primary token store is nil")
	errNilFallbackStore = errors.New("fallback token store is nil")
)

func NewChainStore(primary ports.TokenStore, fallback ports.TokenStore) (*ChainStore, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &ChainStore{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(fileRoot string) (*ChainStore, error) {
	return NewChainStore(NewPassStore(), NewFileStore(fileRoot))
}

func (s *ChainStore) Get(ctx context.Context) (domain.Credential, error) {
	credential, err := s.primary.Get(ctx)
	if err == nil {
		return credential, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackCredential, fallbackErr := s.fallback.Get(ctx)
	if fallbackErr == nil {
		return fallbackCredential, nil
	}
	if errors.Is(err, domain.ErrCredentialAbsent) && errors.Is(fallbackErr, domain.ErrCredentialAbsent) {
		return "", domain.ErrCredentialAbsent
	}
	if errors.Is(fallbackErr, domain.ErrCredentialAbsent) && errors.Is(err, ErrPassUnavailable) {
		return "", domain.ErrCredentialAbsent
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

func (s *ChainStore) Set(ctx context.Context, credential domain.Credential) error {
	err := s.primary.Set(ctx, credential)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Set(ctx, credential)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend set failed: %w; fallback backend set failed: %w", err, fallbackErr)
}

// Clear empties both slots so a stale fallback copy cannot outlive a logout.
func (s *ChainStore) Clear(ctx context.Context) error {
	err := s.primary.Clear(ctx)
	if shouldSkipFallback(err) {
		return err
	}
	if errors.Is(err, ErrPassUnavailable) {
		err = nil
	}

	fallbackErr := s.fallback.Clear(ctx)
	if err == nil && fallbackErr == nil {
		return nil
	}

	return errors.Join(err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
