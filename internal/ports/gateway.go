package ports

import (
	"context"

	"github.com/bnema/squarelink-cli/internal/domain"
)

type Gateway interface {
	Signup(ctx context.Context, req domain.SignupRequest) (domain.Credential, error)
	Login(ctx context.Context, req domain.LoginRequest) (domain.Credential, error)
	GetIdentity(ctx context.Context) (domain.Identity, error)

	GetConnection(ctx context.Context) (domain.Connection, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	UpdateConnection(ctx context.Context, update domain.ConnectionUpdate) (domain.Connection, error)
	RevokeConnection(ctx context.Context) error

	ListSubscriptionData(ctx context.Context, businessID string) (domain.SubscriptionData, error)
	CreatePlan(ctx context.Context, plan domain.NewPlan) error
	CreatePlanVariation(ctx context.Context, variation domain.NewPlanVariation) error
}

// Diagnostics receives the outcome of an OAuth redirect. Delivery is best effort.
type Diagnostics interface {
	ReportOAuth(ctx context.Context, report domain.OAuthReport) error
}
