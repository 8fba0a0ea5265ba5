package ports

import (
	"context"
	"time"

	"github.com/bnema/squarelink-cli/internal/domain"
)

// Projection is the last remotely confirmed view of the connection, kept for
// offline display.
type Projection struct {
	IdentityEmail string
	BusinessID    string
	Connection    *domain.Connection
	Locations     []domain.Location
	Subscriptions *domain.SubscriptionData
	CapturedAt    time.Time
}

type ProjectionRepository interface {
	Load(ctx context.Context) (Projection, error)
	Save(ctx context.Context, projection Projection) error
	Clear(ctx context.Context) error
}
