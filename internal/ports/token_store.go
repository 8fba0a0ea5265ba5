package ports

import (
	"context"

	"github.com/bnema/squarelink-cli/internal/domain"
)

// TokenStore holds the single bearer credential. Get returns
// domain.ErrCredentialAbsent when the slot is empty.
type TokenStore interface {
	Get(ctx context.Context) (domain.Credential, error)
	Set(ctx context.Context, credential domain.Credential) error
	Clear(ctx context.Context) error
}
