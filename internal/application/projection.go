package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
)

// ProjectionOf captures the confirmed parts of a snapshot. The tentative
// location is never part of a projection.
func ProjectionOf(snapshot domain.Snapshot, capturedAt time.Time) ports.Projection {
	snapshot = snapshot.Clone()

	projection := ports.Projection{
		Connection:    snapshot.Connection,
		Locations:     snapshot.Locations,
		Subscriptions: snapshot.Subscriptions,
		CapturedAt:    capturedAt,
	}
	if snapshot.Identity != nil {
		projection.IdentityEmail = snapshot.Identity.Email
		projection.BusinessID = snapshot.Identity.BusinessID
	}

	return projection
}

// CachedProjection returns the last projection written to disk. It is only
// meant for offline display and is never loaded into the session.
func (s *Session) CachedProjection(ctx context.Context) (ports.Projection, error) {
	if s.projections == nil {
		return ports.Projection{}, domain.ErrProjectionNotFound
	}

	projection, err := s.projections.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrProjectionNotFound) {
			return ports.Projection{}, err
		}
		return ports.Projection{}, fmt.Errorf("load projection: %w", err)
	}

	return projection, nil
}

// persistProjection writes the current view unless the session was reset
// after epoch.
func (s *Session) persistProjection(ctx context.Context, epoch uint64) {
	if s.projections == nil {
		return
	}

	snapshot := s.store.Snapshot()
	if !snapshot.IsAuthenticated() {
		return
	}

	current, err := s.store.WhileCurrent(epoch, func() error {
		return s.projections.Save(ctx, ProjectionOf(snapshot, s.clock.Now()))
	})
	if !current {
		s.logger.Debug().Msg("projection discarded after logout")
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("save connection projection")
	}
}

func (s *Session) clearProjection(ctx context.Context) {
	if s.projections == nil {
		return
	}

	if err := s.projections.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("clear connection projection")
	}
}
