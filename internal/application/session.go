package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ErrStaleSession is returned when the session was reset (for example by a
// logout) while a request was in flight. The response is discarded.
var ErrStaleSession = errors.New("session changed while request was in flight")

type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

type SessionOptions struct {
	// Projections is optional. When set, every confirmed change of the
	// connection view is written to it for offline display.
	Projections ports.ProjectionRepository
	Clock       ports.Clock
	Logger      zerolog.Logger
}

// Session is the only writer of its Store. Sub-steps of one transition run in
// sequence on the caller's goroutine.
type Session struct {
	store       *Store
	tokens      ports.TokenStore
	gateway     ports.Gateway
	projections ports.ProjectionRepository
	validate    *validator.Validate
	clock       ports.Clock
	logger      zerolog.Logger
}

func NewSession(tokens ports.TokenStore, gateway ports.Gateway, opts SessionOptions) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	s := &Session{
		store:       NewStore(),
		tokens:      tokens,
		gateway:     gateway,
		projections: opts.Projections,
		validate:    newValidator(),
		clock:       clock,
		logger:      opts.Logger,
	}
	s.store.Subscribe(func(action string, snapshot domain.Snapshot) {
		s.logger.Trace().
			Str("action", action).
			Str("state", string(snapshot.State)).
			Bool("connected", snapshot.Connection.Active()).
			Int("locations", len(snapshot.Locations)).
			Msg("session transition")
	})

	return s
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) Snapshot() domain.Snapshot {
	return s.store.Snapshot()
}

func (s *Session) commit(epoch uint64, name string, apply func(*domain.Snapshot)) bool {
	applied := s.store.Dispatch(Action{Name: name, Epoch: epoch, Apply: apply})
	if !applied {
		s.logger.Debug().Str("action", name).Msg("discarded stale session update")
	}
	return applied
}

// Boot restores the session from the token store. A missing credential is
// not an error.
func (s *Session) Boot(ctx context.Context) error {
	epoch := s.store.Epoch()

	credential, err := s.tokens.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialAbsent) {
			s.commit(epoch, "boot/anonymous", func(snapshot *domain.Snapshot) {
				*snapshot = domain.Snapshot{State: domain.SessionUnauthenticated}
			})
			return nil
		}

		s.commit(epoch, "boot/rejected", func(snapshot *domain.Snapshot) {
			*snapshot = domain.Snapshot{State: domain.SessionUnauthenticated, AuthError: err.Error()}
		})
		return fmt.Errorf("read credential: %w", err)
	}

	s.commit(epoch, "boot/pending", func(snapshot *domain.Snapshot) {
		*snapshot = domain.Snapshot{
			State:       domain.SessionInitializing,
			Credential:  credential,
			AuthLoading: true,
		}
	})

	return s.establish(ctx, epoch)
}

func (s *Session) Signup(ctx context.Context, req domain.SignupRequest) error {
	epoch := s.store.Epoch()
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if err := validateInput(s.validate, req); err != nil {
		s.recordAuthError(epoch, "signup/invalid", err)
		return err
	}

	s.commit(epoch, "signup/pending", authPending)
	credential, err := s.gateway.Signup(ctx, req)
	return s.authenticate(ctx, epoch, "signup", credential, err)
}

func (s *Session) Login(ctx context.Context, req domain.LoginRequest) error {
	epoch := s.store.Epoch()
	req.Email = strings.TrimSpace(req.Email)

	if err := validateInput(s.validate, req); err != nil {
		s.recordAuthError(epoch, "login/invalid", err)
		return err
	}

	s.commit(epoch, "login/pending", authPending)
	credential, err := s.gateway.Login(ctx, req)
	return s.authenticate(ctx, epoch, "login", credential, err)
}

func authPending(snapshot *domain.Snapshot) {
	snapshot.AuthLoading = true
	snapshot.AuthError = ""
}

func (s *Session) authenticate(ctx context.Context, epoch uint64, flow string, credential domain.Credential, err error) error {
	if err != nil {
		state := domain.SessionUnauthenticated
		if domain.IsAuthRejection(err) {
			state = domain.SessionAuthenticationFailed
		}
		s.commit(epoch, flow+"/rejected", func(snapshot *domain.Snapshot) {
			snapshot.AuthLoading = false
			snapshot.AuthError = domain.Message(err)
			if snapshot.State != domain.SessionAuthenticated {
				snapshot.State = state
			}
		})
		return fmt.Errorf("%s: %w", flow, err)
	}

	current, err := s.store.WhileCurrent(epoch, func() error {
		return s.tokens.Set(ctx, credential)
	})
	if !current {
		s.logger.Debug().Str("flow", flow).Msg("credential discarded after logout")
		return ErrStaleSession
	}
	if err != nil {
		s.recordAuthError(epoch, flow+"/store_failed", err)
		return fmt.Errorf("store credential: %w", err)
	}

	if !s.commit(epoch, flow+"/fulfilled", func(snapshot *domain.Snapshot) {
		*snapshot = domain.Snapshot{
			State:       domain.SessionInitializing,
			Credential:  credential,
			AuthLoading: true,
		}
	}) {
		return ErrStaleSession
	}

	return s.establish(ctx, epoch)
}

// establish loads the identity for the current credential, then the
// connection. Only the identity step can end the session.
func (s *Session) establish(ctx context.Context, epoch uint64) error {
	if err := s.loadIdentity(ctx, epoch); err != nil {
		return err
	}

	if err := s.refreshConnection(ctx, epoch); err != nil {
		s.logger.Warn().Err(err).Msg("connection refresh after authentication failed")
	}

	return nil
}

func (s *Session) loadIdentity(ctx context.Context, epoch uint64) error {
	identity, err := s.gateway.GetIdentity(ctx)
	if err != nil {
		return s.endSession(ctx, epoch, fmt.Errorf("get identity: %w", err))
	}

	if !s.commit(epoch, "identity/fulfilled", func(snapshot *domain.Snapshot) {
		snapshot.State = domain.SessionAuthenticated
		snapshot.Identity = &identity
		snapshot.AuthLoading = false
		snapshot.AuthError = ""
	}) {
		return ErrStaleSession
	}

	return nil
}

// endSession drops a credential the account service would not accept.
func (s *Session) endSession(ctx context.Context, epoch uint64, cause error) error {
	if s.store.Epoch() != epoch {
		return ErrStaleSession
	}

	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("clear rejected credential")
	}
	s.clearProjection(ctx)

	s.commit(epoch, "identity/rejected", func(snapshot *domain.Snapshot) {
		*snapshot = domain.Snapshot{
			State:     domain.SessionUnauthenticated,
			AuthError: domain.Message(cause),
		}
	})

	return cause
}

func (s *Session) recordAuthError(epoch uint64, name string, err error) {
	s.commit(epoch, name, func(snapshot *domain.Snapshot) {
		snapshot.AuthLoading = false
		snapshot.AuthError = err.Error()
	})
}

// Logout clears the credential and every derived value. The in-memory
// transition always happens; a token store failure is returned afterwards.
func (s *Session) Logout(ctx context.Context) error {
	s.store.Dispatch(Action{Name: "logout", Reset: true, Apply: func(snapshot *domain.Snapshot) {
		*snapshot = domain.Snapshot{State: domain.SessionUnauthenticated}
	}})

	s.clearProjection(ctx)
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("clear credential on logout")
		return fmt.Errorf("clear credential: %w", err)
	}

	return nil
}

func (s *Session) RefreshIdentity(ctx context.Context) error {
	epoch := s.store.Epoch()
	s.commit(epoch, "identity/pending", authPending)
	if err := s.loadIdentity(ctx, epoch); err != nil {
		return err
	}

	s.persistProjection(ctx, epoch)
	return nil
}

func (s *Session) RefreshConnection(ctx context.Context) error {
	return s.refreshConnection(ctx, s.store.Epoch())
}

func (s *Session) refreshConnection(ctx context.Context, epoch uint64) error {
	s.commit(epoch, "business/pending", businessPending)

	connection, err := s.gateway.GetConnection(ctx)
	if err != nil {
		s.commit(epoch, "business/rejected", businessRejected(err))
		return fmt.Errorf("refresh connection: %w", err)
	}

	if !s.commit(epoch, "business/fulfilled", func(snapshot *domain.Snapshot) {
		replaceConnection(snapshot, connection)
		snapshot.BusinessLoading = false
	}) {
		return ErrStaleSession
	}

	s.persistProjection(ctx, epoch)
	return nil
}

// RefreshLocations fetches the location list when the connection is active
// and no list is cached. It reports whether a fetch was issued.
func (s *Session) RefreshLocations(ctx context.Context) (bool, error) {
	epoch := s.store.Epoch()
	snapshot := s.store.Snapshot()
	if !snapshot.Connection.Active() || len(snapshot.Locations) > 0 {
		return false, nil
	}

	s.commit(epoch, "locations/pending", businessPending)

	locations, err := s.gateway.ListLocations(ctx)
	if err != nil {
		s.commit(epoch, "locations/rejected", businessRejected(err))
		return true, fmt.Errorf("list locations: %w", err)
	}

	if !s.commit(epoch, "locations/fulfilled", func(snapshot *domain.Snapshot) {
		snapshot.Locations = locations
		snapshot.BusinessLoading = false
	}) {
		return true, ErrStaleSession
	}

	s.persistProjection(ctx, epoch)
	return true, nil
}

// SelectLocation shows the location as selected while the update is in
// flight and keeps it only if the account service confirms the change.
func (s *Session) SelectLocation(ctx context.Context, location domain.Location) error {
	update := location.UpdateFor()
	if update.LocationID == "" {
		return fmt.Errorf("%w: location id is required", domain.ErrInvalidInput)
	}
	if err := validateInput(s.validate, update); err != nil {
		return err
	}

	epoch := s.store.Epoch()
	s.commit(epoch, "location/tentative", func(snapshot *domain.Snapshot) {
		tentative := location
		snapshot.TentativeLocation = &tentative
		businessPending(snapshot)
	})

	connection, err := s.gateway.UpdateConnection(ctx, update)
	if err != nil {
		s.commit(epoch, "location/rollback", func(snapshot *domain.Snapshot) {
			snapshot.TentativeLocation = nil
			businessRejected(err)(snapshot)
		})
		return fmt.Errorf("select location: %w", err)
	}

	if !s.commit(epoch, "location/committed", func(snapshot *domain.Snapshot) {
		replaceConnection(snapshot, connection)
		snapshot.BusinessLoading = false
	}) {
		return ErrStaleSession
	}

	s.persistProjection(ctx, epoch)
	return nil
}

func (s *Session) UpdateConnection(ctx context.Context, update domain.ConnectionUpdate) error {
	update.Name = strings.TrimSpace(update.Name)
	update.LocationID = strings.TrimSpace(update.LocationID)
	update.Currency = strings.ToUpper(strings.TrimSpace(update.Currency))
	if update.Empty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if err := validateInput(s.validate, update); err != nil {
		return err
	}

	epoch := s.store.Epoch()
	s.commit(epoch, "business_update/pending", businessPending)

	connection, err := s.gateway.UpdateConnection(ctx, update)
	if err != nil {
		s.commit(epoch, "business_update/rejected", businessRejected(err))
		return fmt.Errorf("update connection: %w", err)
	}

	if !s.commit(epoch, "business_update/fulfilled", func(snapshot *domain.Snapshot) {
		replaceConnection(snapshot, connection)
		snapshot.BusinessLoading = false
	}) {
		return ErrStaleSession
	}

	s.persistProjection(ctx, epoch)
	return nil
}

// Disconnect revokes the Square connection once confirm agrees.
func (s *Session) Disconnect(ctx context.Context, confirm Confirmer) error {
	if confirm == nil {
		return errors.New("disconnect requires confirmation")
	}

	snapshot := s.store.Snapshot()
	if !snapshot.Connection.Active() {
		return domain.ErrNoConnection
	}

	prompt := "Disconnect your Square account?"
	if name := strings.TrimSpace(snapshot.Connection.Name); name != "" {
		prompt = fmt.Sprintf("Disconnect Square account for %s?", name)
	}
	ok, err := confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm disconnect: %w", err)
	}
	if !ok {
		return domain.ErrDisconnectDeclined
	}

	epoch := s.store.Epoch()
	s.commit(epoch, "revoke/pending", businessPending)

	if err := s.gateway.RevokeConnection(ctx); err != nil {
		s.commit(epoch, "revoke/rejected", businessRejected(err))
		return fmt.Errorf("revoke connection: %w", err)
	}

	if !s.commit(epoch, "revoke/fulfilled", func(snapshot *domain.Snapshot) {
		snapshot.Connection = nil
		snapshot.Locations = nil
		snapshot.TentativeLocation = nil
		snapshot.BusinessLoading = false
		snapshot.BusinessError = ""
	}) {
		return ErrStaleSession
	}

	s.clearProjection(ctx)
	return nil
}

func (s *Session) RefreshSubscriptions(ctx context.Context) error {
	businessID, err := s.businessID()
	if err != nil {
		return err
	}

	epoch := s.store.Epoch()
	s.commit(epoch, "subscriptions/pending", subscriptionPending)

	data, err := s.gateway.ListSubscriptionData(ctx, businessID)
	if err != nil {
		s.commit(epoch, "subscriptions/rejected", subscriptionRejected(err))
		return fmt.Errorf("list subscription data: %w", err)
	}

	if !s.commit(epoch, "subscriptions/fulfilled", func(snapshot *domain.Snapshot) {
		snapshot.Subscriptions = &data
		snapshot.SubscriptionLoading = false
	}) {
		return ErrStaleSession
	}

	s.persistProjection(ctx, epoch)
	return nil
}

func (s *Session) CreatePlan(ctx context.Context, name string) error {
	businessID, err := s.businessID()
	if err != nil {
		return err
	}

	plan := domain.NewPlan{Name: strings.TrimSpace(name), BusinessID: businessID}
	if err := validateInput(s.validate, plan); err != nil {
		return err
	}

	epoch := s.store.Epoch()
	s.commit(epoch, "create_plan/pending", subscriptionPending)

	if err := s.gateway.CreatePlan(ctx, plan); err != nil {
		s.commit(epoch, "create_plan/rejected", subscriptionRejected(err))
		return fmt.Errorf("create plan: %w", err)
	}

	if !s.commit(epoch, "create_plan/fulfilled", subscriptionSettled) {
		return ErrStaleSession
	}

	return s.RefreshSubscriptions(ctx)
}

// CreatePlanVariation creates a variation under the plan whose object id is
// variation.PlanID. The business id defaults to the identity's business.
func (s *Session) CreatePlanVariation(ctx context.Context, variation domain.NewPlanVariation) error {
	businessID, err := s.businessID()
	if err != nil {
		return err
	}

	variation.PlanID = strings.TrimSpace(variation.PlanID)
	variation.Name = strings.TrimSpace(variation.Name)
	variation.Cadence = strings.ToUpper(strings.TrimSpace(variation.Cadence))
	variation.Type = strings.ToUpper(strings.TrimSpace(variation.Type))
	if variation.BusinessID == "" {
		variation.BusinessID = businessID
	}
	if err := validateInput(s.validate, variation); err != nil {
		return err
	}

	epoch := s.store.Epoch()
	s.commit(epoch, "create_variation/pending", subscriptionPending)

	if err := s.gateway.CreatePlanVariation(ctx, variation); err != nil {
		s.commit(epoch, "create_variation/rejected", subscriptionRejected(err))
		return fmt.Errorf("create plan variation: %w", err)
	}

	if !s.commit(epoch, "create_variation/fulfilled", subscriptionSettled) {
		return ErrStaleSession
	}

	return s.RefreshSubscriptions(ctx)
}

// ClearError dismisses the authentication error.
func (s *Session) ClearError() {
	s.commit(s.store.Epoch(), "clear_error", func(snapshot *domain.Snapshot) {
		snapshot.AuthError = ""
	})
}

func (s *Session) businessID() (string, error) {
	snapshot := s.store.Snapshot()
	if !snapshot.IsAuthenticated() {
		return "", domain.ErrUnauthenticated
	}
	if snapshot.Identity == nil || strings.TrimSpace(snapshot.Identity.BusinessID) == "" {
		return "", domain.ErrNoBusiness
	}
	return snapshot.Identity.BusinessID, nil
}

// replaceConnection swaps the connection for the server's copy. The cached
// locations belong to a merchant, so they are dropped when it changes.
func replaceConnection(snapshot *domain.Snapshot, connection domain.Connection) {
	previous := ""
	if snapshot.Connection != nil {
		previous = snapshot.Connection.MerchantID
	}
	if !connection.Active() || connection.MerchantID != previous {
		snapshot.Locations = nil
	}

	snapshot.Connection = &connection
	snapshot.TentativeLocation = nil
	snapshot.BusinessError = ""
}

func businessPending(snapshot *domain.Snapshot) {
	snapshot.BusinessLoading = true
	snapshot.BusinessError = ""
}

func businessRejected(err error) func(*domain.Snapshot) {
	return func(snapshot *domain.Snapshot) {
		snapshot.BusinessLoading = false
		snapshot.BusinessError = domain.Message(err)
	}
}

func subscriptionPending(snapshot *domain.Snapshot) {
	snapshot.SubscriptionLoading = true
	snapshot.SubscriptionError = ""
}

func subscriptionSettled(snapshot *domain.Snapshot) {
	snapshot.SubscriptionLoading = false
	snapshot.SubscriptionError = ""
}

func subscriptionRejected(err error) func(*domain.Snapshot) {
	return func(snapshot *domain.Snapshot) {
		snapshot.SubscriptionLoading = false
		snapshot.SubscriptionError = domain.Message(err)
	}
}
