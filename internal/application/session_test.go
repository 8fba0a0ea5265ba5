package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bnema/squarelink-cli/internal/adapters/tokenstore"
	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionBootWithoutCredentialStaysAnonymous(t *testing.T) {
	t.Parallel()

	gateway := newFakeGateway(nil)
	session := newTestSession(t, tokenstore.NewMemoryStore(""), gateway, nil)

	require.NoError(t, session.Boot(context.Background()))

	assert.Equal(t, domain.Snapshot{State: domain.SessionUnauthenticated}, session.Snapshot())
	assert.Empty(t, gateway.Calls())
}

func TestSessionBootLoadsIdentityThenConnection(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)

	require.NoError(t, session.Boot(context.Background()))

	snapshot := session.Snapshot()
	assert.Equal(t, domain.SessionAuthenticated, snapshot.State)
	assert.True(t, snapshot.IsAuthenticated())
	require.NotNil(t, snapshot.Identity)
	assert.Equal(t, "ana@cafe.co", snapshot.Identity.Email)
	require.NotNil(t, snapshot.Connection)
	assert.True(t, snapshot.Connection.Active())
	assert.Empty(t, snapshot.Locations)
	assert.False(t, snapshot.AuthLoading)
	assert.False(t, snapshot.BusinessLoading)
	assert.Equal(t, []string{"get_identity", "get_connection"}, gateway.Calls())
}

func TestSessionBootWithRejectedCredentialClearsIt(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("expired")
	gateway := newFakeGateway(tokens)
	gateway.identityErr = &domain.RemoteRejectedError{Status: http.StatusUnauthorized, Message: "Invalid token"}
	session := newTestSession(t, tokens, gateway, nil)

	err := session.Boot(context.Background())
	require.Error(t, err)

	snapshot := session.Snapshot()
	assert.Equal(t, domain.SessionUnauthenticated, snapshot.State)
	assert.Nil(t, snapshot.Identity)
	assert.True(t, snapshot.Credential.Empty())
	assert.Equal(t, "Invalid token", snapshot.AuthError)

	_, err = tokens.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialAbsent)
	assert.Equal(t, []string{"get_identity"}, gateway.Calls())
}

func TestSessionConnectionFailureKeepsAuthentication(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	gateway.connectionErr = fmt.Errorf("get_business: %w", domain.ErrUnreachable)
	session := newTestSession(t, tokens, gateway, nil)

	require.NoError(t, session.Boot(context.Background()))

	snapshot := session.Snapshot()
	assert.True(t, snapshot.IsAuthenticated())
	assert.Nil(t, snapshot.Connection)
	assert.Contains(t, snapshot.BusinessError, "unreachable")
	assert.Empty(t, snapshot.AuthError)
}

func TestSessionLoginThenLogoutReturnsToInitialState(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)
	initial := session.Snapshot()

	require.NoError(t, session.Login(context.Background(), domain.LoginRequest{Email: " ana@cafe.co ", Password: "hunter22"}))
	_, err := session.RefreshLocations(context.Background())
	require.NoError(t, err)

	authenticated := session.Snapshot()
	assert.Equal(t, domain.Credential("tok"), authenticated.Credential)
	assert.NotEmpty(t, authenticated.Locations)
	assert.Equal(t, "ana@cafe.co", gateway.lastLogin.Email)

	require.NoError(t, session.Logout(context.Background()))

	assert.Equal(t, initial, session.Snapshot())
	_, err = tokens.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialAbsent)
}

func TestSessionSignupStoresCredential(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)

	require.NoError(t, session.Signup(context.Background(), domain.SignupRequest{Name: "Ana", Email: "ana@cafe.co", Password: "longenough"}))

	credential, err := tokens.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Credential("tok"), credential)
	assert.Equal(t, []string{"signup", "get_identity", "get_connection"}, gateway.Calls())
}

func TestSessionLoginRejectedMarksAuthenticationFailed(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("")
	gateway := newFakeGateway(tokens)
	gateway.loginErr = &domain.RemoteRejectedError{Status: http.StatusForbidden, Message: "Invalid Credentials."}
	session := newTestSession(t, tokens, gateway, nil)

	err := session.Login(context.Background(), domain.LoginRequest{Email: "ana@cafe.co", Password: "wrong"})
	require.Error(t, err)

	snapshot := session.Snapshot()
	assert.Equal(t, domain.SessionAuthenticationFailed, snapshot.State)
	assert.Equal(t, "Invalid Credentials.", snapshot.AuthError)
	assert.False(t, snapshot.AuthLoading)
	_, err = tokens.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialAbsent)
}

func TestSessionLoginUnreachableStaysUnauthenticated(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("")
	gateway := newFakeGateway(tokens)
	gateway.loginErr = fmt.Errorf("login: %w", domain.ErrUnreachable)
	session := newTestSession(t, tokens, gateway, nil)

	err := session.Login(context.Background(), domain.LoginRequest{Email: "ana@cafe.co", Password: "x"})
	require.ErrorIs(t, err, domain.ErrUnreachable)
	assert.Equal(t, domain.SessionUnauthenticated, session.Snapshot().State)
}

func TestSessionLoginValidatesInputBeforeCalling(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)

	err := session.Login(context.Background(), domain.LoginRequest{Email: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "email must be a valid email address")
	assert.Contains(t, err.Error(), "password is required")
	assert.Empty(t, gateway.Calls())

	session.ClearError()
	assert.Empty(t, session.Snapshot().AuthError)
}

func TestSessionLogoutWinsOverInFlightIdentityFetch(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)
	gateway.beforeIdentity = func() {
		require.NoError(t, session.Logout(context.Background()))
	}

	err := session.Boot(context.Background())
	require.ErrorIs(t, err, ErrStaleSession)

	snapshot := session.Snapshot()
	assert.Equal(t, domain.SessionUnauthenticated, snapshot.State)
	assert.Nil(t, snapshot.Identity)
	assert.Nil(t, snapshot.Connection)
}

func TestSessionLogoutWinsOverInFlightLogin(t *testing.T) {
	t.Parallel()

	flows := map[string]func(*Session) error{
		"login": func(session *Session) error {
			return session.Login(context.Background(), domain.LoginRequest{Email: "ana@cafe.co", Password: "hunter22"})
		},
		"signup": func(session *Session) error {
			return session.Signup(context.Background(), domain.SignupRequest{Name: "Ana", Email: "ana@cafe.co", Password: "longenough"})
		},
	}

	for name, run := range flows {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tokens := tokenstore.NewMemoryStore("")
			gateway := newFakeGateway(tokens)
			projections := &inMemoryProjectionRepo{}
			session := newTestSession(t, tokens, gateway, projections)
			gateway.beforeLogin = func() {
				require.NoError(t, session.Logout(context.Background()))
			}

			require.ErrorIs(t, run(session), ErrStaleSession)
			assert.Equal(t, domain.Snapshot{State: domain.SessionUnauthenticated}, session.Snapshot())
			assert.Zero(t, gateway.CallCount("get_identity"))

			_, err := tokens.Get(context.Background())
			require.ErrorIs(t, err, domain.ErrCredentialAbsent)
			_, err = session.CachedProjection(context.Background())
			require.ErrorIs(t, err, domain.ErrProjectionNotFound)

			next := newTestSession(t, tokens, gateway, projections)
			require.NoError(t, next.Boot(context.Background()))
			assert.Equal(t, domain.SessionUnauthenticated, next.Snapshot().State)
			assert.Nil(t, next.Snapshot().Identity)
		})
	}
}

func TestSessionLogoutWinsOverInFlightConnectionFetch(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)
	gateway.beforeConnection = func() {
		require.NoError(t, session.Logout(context.Background()))
	}

	require.NoError(t, session.Boot(context.Background()))

	snapshot := session.Snapshot()
	assert.Equal(t, domain.Snapshot{State: domain.SessionUnauthenticated}, snapshot)
}

func TestSessionRefreshLocationsIsGuarded(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	gateway.connection.MerchantID = ""
	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))

	fetched, err := session.RefreshLocations(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)

	gateway.connection.MerchantID = "M1"
	require.NoError(t, session.RefreshConnection(context.Background()))

	fetched, err = session.RefreshLocations(context.Background())
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Len(t, session.Snapshot().Locations, 2)

	fetched, err = session.RefreshLocations(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Equal(t, 1, gateway.CallCount("list_locations"))
}

func TestSessionSelectLocationFailureRestoresPreviousSelection(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := bootedSessionWithLocations(t, tokens, gateway)

	before, ok := session.Snapshot().SelectedLocation()
	require.True(t, ok)
	require.Equal(t, "L1", before.ID)

	var tentative []string
	unsubscribe := session.Store().Subscribe(func(action string, snapshot domain.Snapshot) {
		if selected, ok := snapshot.SelectedLocation(); ok {
			tentative = append(tentative, action+":"+selected.ID)
		}
	})
	defer unsubscribe()

	gateway.updateErr = &domain.RemoteRejectedError{Status: http.StatusBadRequest, Message: "Invalid location"}
	err := session.SelectLocation(context.Background(), gateway.locations[1])
	require.Error(t, err)

	snapshot := session.Snapshot()
	after, ok := snapshot.SelectedLocation()
	require.True(t, ok)
	assert.Equal(t, "L1", after.ID)
	assert.Nil(t, snapshot.TentativeLocation)
	assert.Equal(t, "Invalid location", snapshot.BusinessError)
	assert.Equal(t, []string{"location/tentative:L2", "location/rollback:L1"}, tentative)
}

func TestSessionSelectLocationCommitsServerConnection(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := bootedSessionWithLocations(t, tokens, gateway)

	require.NoError(t, session.SelectLocation(context.Background(), gateway.locations[1]))

	assert.Equal(t, domain.ConnectionUpdate{Name: "Cafe Uptown", LocationID: "L2", Currency: "CAD"}, gateway.lastUpdate)
	snapshot := session.Snapshot()
	assert.Nil(t, snapshot.TentativeLocation)
	assert.Equal(t, "L2", snapshot.Connection.ProductionLocationID)
	assert.Len(t, snapshot.Locations, 2)

	selected, ok := snapshot.SelectedLocation()
	require.True(t, ok)
	assert.Equal(t, "L2", selected.ID)
}

func TestSessionUpdateConnectionReplacesCachedConnection(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	gateway.connection.ProductionLocationID = ""
	gateway.connection.Currency = ""
	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))

	require.NoError(t, session.UpdateConnection(context.Background(), domain.ConnectionUpdate{Name: "Cafe", LocationID: "L1", Currency: "usd"}))

	snapshot := session.Snapshot()
	assert.Equal(t, "L1", snapshot.Connection.ProductionLocationID)
	assert.Equal(t, "USD", snapshot.Connection.Currency)
	assert.Equal(t, "Cafe", snapshot.Connection.Name)
}

func TestSessionUpdateConnectionRejectsEmptyAndInvalidInput(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))

	err := session.UpdateConnection(context.Background(), domain.ConnectionUpdate{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	err = session.UpdateConnection(context.Background(), domain.ConnectionUpdate{Currency: "DOLLARS"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "currency must be exactly 3 characters")
	assert.Zero(t, gateway.CallCount("update_business"))
}

func TestSessionDisconnect(t *testing.T) {
	t.Parallel()

	t.Run("declined issues no call", func(t *testing.T) {
		t.Parallel()

		tokens := tokenstore.NewMemoryStore("tok")
		gateway := newFakeGateway(tokens)
		session := bootedSessionWithLocations(t, tokens, gateway)

		var prompt string
		err := session.Disconnect(context.Background(), ConfirmFunc(func(_ context.Context, p string) (bool, error) {
			prompt = p
			return false, nil
		}))
		require.ErrorIs(t, err, domain.ErrDisconnectDeclined)
		assert.Equal(t, "Disconnect Square account for Cafe Co?", prompt)
		assert.Zero(t, gateway.CallCount("revoke_connection"))
		assert.True(t, session.Snapshot().Connection.Active())
	})

	t.Run("success clears connection and locations", func(t *testing.T) {
		t.Parallel()

		tokens := tokenstore.NewMemoryStore("tok")
		gateway := newFakeGateway(tokens)
		session := bootedSessionWithLocations(t, tokens, gateway)

		require.NoError(t, session.Disconnect(context.Background(), alwaysConfirm))

		snapshot := session.Snapshot()
		assert.Nil(t, snapshot.Connection)
		assert.Empty(t, snapshot.Locations)
		assert.True(t, snapshot.IsAuthenticated())
	})

	t.Run("failure leaves state untouched", func(t *testing.T) {
		t.Parallel()

		tokens := tokenstore.NewMemoryStore("tok")
		gateway := newFakeGateway(tokens)
		session := bootedSessionWithLocations(t, tokens, gateway)
		gateway.revokeErr = &domain.RemoteRejectedError{Status: http.StatusInternalServerError, Message: "Failed to revoke Square connection"}

		before := session.Snapshot()
		err := session.Disconnect(context.Background(), alwaysConfirm)
		require.Error(t, err)

		after := session.Snapshot()
		assert.Equal(t, before.Connection, after.Connection)
		assert.Equal(t, before.Locations, after.Locations)
		assert.Equal(t, "Failed to revoke Square connection", after.BusinessError)
	})

	t.Run("not connected", func(t *testing.T) {
		t.Parallel()

		tokens := tokenstore.NewMemoryStore("tok")
		gateway := newFakeGateway(tokens)
		gateway.connection.MerchantID = ""
		session := newTestSession(t, tokens, gateway, nil)
		require.NoError(t, session.Boot(context.Background()))

		err := session.Disconnect(context.Background(), alwaysConfirm)
		require.ErrorIs(t, err, domain.ErrNoConnection)
	})
}

func TestSessionCreatePlanVariationRefreshesWholeList(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))

	require.NoError(t, session.CreatePlan(context.Background(), " Gold "))
	snapshot := session.Snapshot()
	require.NotNil(t, snapshot.Subscriptions)
	require.Len(t, snapshot.Subscriptions.Plans, 1)
	plan := snapshot.Subscriptions.Plans[0]
	assert.Equal(t, "Gold", plan.Name)
	assert.NotEqual(t, fmt.Sprint(plan.ID), plan.ObjectID)

	require.NoError(t, session.CreatePlanVariation(context.Background(), domain.NewPlanVariation{
		PlanID:  plan.ObjectID,
		Name:    "Monthly",
		Cadence: "monthly",
		Type:    "static",
		Amount:  1500,
	}))

	assert.Equal(t, []string{
		"get_identity", "get_connection",
		"create_plan", "list_subscription_data",
		"create_plan_variation", "list_subscription_data",
	}, gateway.Calls())

	snapshot = session.Snapshot()
	variations := snapshot.Subscriptions.VariationsForPlan(snapshot.Subscriptions.Plans[0])
	require.Len(t, variations, 1)
	assert.Equal(t, "Monthly", variations[0].Name)
	assert.Equal(t, "MONTHLY", variations[0].Cadence)
	assert.Equal(t, "B7", gateway.lastVariation.BusinessID)
	assert.False(t, snapshot.SubscriptionLoading)
}

func TestSessionCreatePlanFailureKeepsCachedPlans(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	gateway.subscriptions.Plans = []domain.Plan{{ID: 1, ObjectID: "PLAN_A", Name: "Silver"}}
	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))
	require.NoError(t, session.RefreshSubscriptions(context.Background()))
	before := session.Snapshot().Subscriptions

	gateway.createPlanErr = &domain.RemoteRejectedError{Status: http.StatusBadRequest, Message: "Failed to create subscription plan"}
	err := session.CreatePlan(context.Background(), "Gold")
	require.Error(t, err)

	snapshot := session.Snapshot()
	assert.Equal(t, before, snapshot.Subscriptions)
	assert.Equal(t, "Failed to create subscription plan", snapshot.SubscriptionError)
	assert.Equal(t, 1, gateway.CallCount("list_subscription_data"))
}

func TestSessionSubscriptionsRequireBusiness(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	gateway.identity.BusinessID = ""
	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))

	require.ErrorIs(t, session.RefreshSubscriptions(context.Background()), domain.ErrNoBusiness)
	require.ErrorIs(t, session.CreatePlan(context.Background(), "Gold"), domain.ErrNoBusiness)

	anonymous := newTestSession(t, tokenstore.NewMemoryStore(""), newFakeGateway(nil), nil)
	require.ErrorIs(t, anonymous.RefreshSubscriptions(context.Background()), domain.ErrUnauthenticated)
}

func TestSessionRefreshIdentityRejectionEndsSession(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))

	gateway.identityErr = &domain.RemoteRejectedError{Status: http.StatusUnauthorized, Message: "expired"}
	require.Error(t, session.RefreshIdentity(context.Background()))

	snapshot := session.Snapshot()
	assert.Equal(t, domain.SessionUnauthenticated, snapshot.State)
	assert.Nil(t, snapshot.Connection)
	_, err := tokens.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialAbsent)
}

func TestSessionPersistsProjectionUntilLogout(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	projections := &inMemoryProjectionRepo{}
	session := newTestSession(t, tokens, gateway, projections)

	_, err := session.CachedProjection(context.Background())
	require.ErrorIs(t, err, domain.ErrProjectionNotFound)

	require.NoError(t, session.Boot(context.Background()))
	_, err = session.RefreshLocations(context.Background())
	require.NoError(t, err)

	projection, err := session.CachedProjection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ana@cafe.co", projection.IdentityEmail)
	assert.Equal(t, "B7", projection.BusinessID)
	require.NotNil(t, projection.Connection)
	assert.Equal(t, "M1", projection.Connection.MerchantID)
	assert.Len(t, projection.Locations, 2)
	assert.Equal(t, testNow, projection.CapturedAt)

	require.NoError(t, session.Logout(context.Background()))
	_, err = session.CachedProjection(context.Background())
	require.ErrorIs(t, err, domain.ErrProjectionNotFound)
}

func TestSessionSkipsProjectionFromEarlierSession(t *testing.T) {
	t.Parallel()

	tokens := tokenstore.NewMemoryStore("tok")
	gateway := newFakeGateway(tokens)
	projections := &inMemoryProjectionRepo{}
	session := newTestSession(t, tokens, gateway, projections)
	require.NoError(t, session.Boot(context.Background()))

	staleEpoch := session.Store().Epoch()
	require.NoError(t, session.Logout(context.Background()))
	require.NoError(t, session.Login(context.Background(), domain.LoginRequest{Email: "ana@cafe.co", Password: "hunter22"}))
	require.NoError(t, projections.Clear(context.Background()))

	session.persistProjection(context.Background(), staleEpoch)
	_, err := session.CachedProjection(context.Background())
	require.ErrorIs(t, err, domain.ErrProjectionNotFound)

	session.persistProjection(context.Background(), session.Store().Epoch())
	projection, err := session.CachedProjection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ana@cafe.co", projection.IdentityEmail)
}

func TestSessionProjectionNeverCarriesTentativeLocation(t *testing.T) {
	t.Parallel()

	tentative := domain.Location{ID: "L9"}
	projection := ProjectionOf(domain.Snapshot{
		Connection:        &domain.Connection{ProductionLocationID: "L1"},
		TentativeLocation: &tentative,
	}, testNow)

	assert.Equal(t, "L1", projection.Connection.ProductionLocationID)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var alwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

func newTestSession(t *testing.T, tokens ports.TokenStore, gateway ports.Gateway, projections ports.ProjectionRepository) *Session {
	t.Helper()

	opts := SessionOptions{Clock: fixedClock{now: testNow}, Logger: zerolog.Nop()}
	if projections != nil {
		opts.Projections = projections
	}
	return NewSession(tokens, gateway, opts)
}

func bootedSessionWithLocations(t *testing.T, tokens ports.TokenStore, gateway *fakeGateway) *Session {
	t.Helper()

	session := newTestSession(t, tokens, gateway, nil)
	require.NoError(t, session.Boot(context.Background()))
	fetched, err := session.RefreshLocations(context.Background())
	require.NoError(t, err)
	require.True(t, fetched)
	return session
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// fakeGateway behaves like the account service for a single business. A nil
// token store disables the credential check.
type fakeGateway struct {
	mu     sync.Mutex
	tokens ports.TokenStore
	calls  []string

	identity      domain.Identity
	connection    domain.Connection
	locations     []domain.Location
	subscriptions domain.SubscriptionData

	loginErr           error
	identityErr        error
	connectionErr      error
	locationsErr       error
	updateErr          error
	revokeErr          error
	subscriptionsErr   error
	createPlanErr      error
	createVariationErr error

	beforeLogin      func()
	beforeIdentity   func()
	beforeConnection func()

	lastLogin     domain.LoginRequest
	lastUpdate    domain.ConnectionUpdate
	lastVariation domain.NewPlanVariation
}

func newFakeGateway(tokens ports.TokenStore) *fakeGateway {
	return &fakeGateway{
		tokens:   tokens,
		identity: domain.Identity{ID: "42", Name: "Ana", Email: "ana@cafe.co", BusinessID: "B7", Role: "owner"},
		connection: domain.Connection{
			ID:                   "B7",
			Name:                 "Cafe Co",
			Currency:             "USD",
			ProductionLocationID: "L1",
			MerchantID:           "M1",
		},
		locations: []domain.Location{
			{ID: "L1", Name: "Main", BusinessName: "Cafe Co", Currency: "USD"},
			{ID: "L2", Name: "Uptown", BusinessName: "Cafe Uptown", Currency: "CAD"},
		},
	}
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) CallCount(call string) int {
	count := 0
	for _, recorded := range g.Calls() {
		if recorded == call {
			count++
		}
	}
	return count
}

func (g *fakeGateway) authorize(ctx context.Context) error {
	if g.tokens == nil {
		return nil
	}
	if _, err := g.tokens.Get(ctx); err != nil {
		return domain.ErrUnauthenticated
	}
	return nil
}

func (g *fakeGateway) Signup(_ context.Context, _ domain.SignupRequest) (domain.Credential, error) {
	g.record("signup")
	if g.beforeLogin != nil {
		g.beforeLogin()
	}
	if g.loginErr != nil {
		return "", g.loginErr
	}
	return "tok", nil
}

func (g *fakeGateway) Login(_ context.Context, req domain.LoginRequest) (domain.Credential, error) {
	g.record("login")
	g.lastLogin = req
	if g.beforeLogin != nil {
		g.beforeLogin()
	}
	if g.loginErr != nil {
		return "", g.loginErr
	}
	return "tok", nil
}

func (g *fakeGateway) GetIdentity(ctx context.Context) (domain.Identity, error) {
	if err := g.authorize(ctx); err != nil {
		return domain.Identity{}, err
	}
	g.record("get_identity")
	if g.beforeIdentity != nil {
		g.beforeIdentity()
	}
	if g.identityErr != nil {
		return domain.Identity{}, g.identityErr
	}
	return g.identity, nil
}

func (g *fakeGateway) GetConnection(ctx context.Context) (domain.Connection, error) {
	if err := g.authorize(ctx); err != nil {
		return domain.Connection{}, err
	}
	g.record("get_connection")
	if g.beforeConnection != nil {
		g.beforeConnection()
	}
	if g.connectionErr != nil {
		return domain.Connection{}, g.connectionErr
	}
	return g.connection, nil
}

func (g *fakeGateway) ListLocations(ctx context.Context) ([]domain.Location, error) {
	if err := g.authorize(ctx); err != nil {
		return nil, err
	}
	g.record("list_locations")
	if g.locationsErr != nil {
		return nil, g.locationsErr
	}
	return append([]domain.Location(nil), g.locations...), nil
}

func (g *fakeGateway) UpdateConnection(ctx context.Context, update domain.ConnectionUpdate) (domain.Connection, error) {
	if err := g.authorize(ctx); err != nil {
		return domain.Connection{}, err
	}
	g.record("update_business")
	g.lastUpdate = update
	if g.updateErr != nil {
		return domain.Connection{}, g.updateErr
	}
	if update.Name != "" {
		g.connection.Name = update.Name
	}
	if update.LocationID != "" {
		g.connection.ProductionLocationID = update.LocationID
	}
	if update.Currency != "" {
		g.connection.Currency = update.Currency
	}
	return g.connection, nil
}

func (g *fakeGateway) RevokeConnection(ctx context.Context) error {
	if err := g.authorize(ctx); err != nil {
		return err
	}
	g.record("revoke_connection")
	if g.revokeErr != nil {
		return g.revokeErr
	}
	g.connection = domain.Connection{ID: g.connection.ID}
	return nil
}

func (g *fakeGateway) ListSubscriptionData(ctx context.Context, businessID string) (domain.SubscriptionData, error) {
	if err := g.authorize(ctx); err != nil {
		return domain.SubscriptionData{}, err
	}
	g.record("list_subscription_data")
	if g.subscriptionsErr != nil {
		return domain.SubscriptionData{}, g.subscriptionsErr
	}
	if businessID != g.identity.BusinessID {
		return domain.SubscriptionData{}, errors.New("unexpected business id " + businessID)
	}
	return domain.SubscriptionData{
		Plans:      append([]domain.Plan(nil), g.subscriptions.Plans...),
		Variations: append([]domain.PlanVariation(nil), g.subscriptions.Variations...),
	}, nil
}

func (g *fakeGateway) CreatePlan(ctx context.Context, plan domain.NewPlan) error {
	if err := g.authorize(ctx); err != nil {
		return err
	}
	g.record("create_plan")
	if g.createPlanErr != nil {
		return g.createPlanErr
	}
	id := int64(len(g.subscriptions.Plans) + 100)
	g.subscriptions.Plans = append(g.subscriptions.Plans, domain.Plan{
		ID:         id,
		ObjectID:   fmt.Sprintf("PLAN_OBJ_%d", id),
		Name:       plan.Name,
		BusinessID: plan.BusinessID,
	})
	return nil
}

func (g *fakeGateway) CreatePlanVariation(ctx context.Context, variation domain.NewPlanVariation) error {
	if err := g.authorize(ctx); err != nil {
		return err
	}
	g.record("create_plan_variation")
	g.lastVariation = variation
	if g.createVariationErr != nil {
		return g.createVariationErr
	}
	g.subscriptions.Variations = append(g.subscriptions.Variations, domain.PlanVariation{
		ID:         int64(len(g.subscriptions.Variations) + 1),
		PlanID:     variation.PlanID,
		Name:       variation.Name,
		Cadence:    variation.Cadence,
		Type:       variation.Type,
		Amount:     variation.Amount,
		BusinessID: variation.BusinessID,
	})
	return nil
}

type inMemoryProjectionRepo struct {
	mu         sync.Mutex
	projection *ports.Projection
}

func (r *inMemoryProjectionRepo) Load(_ context.Context) (ports.Projection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.projection == nil {
		return ports.Projection{}, domain.ErrProjectionNotFound
	}
	return *r.projection, nil
}

func (r *inMemoryProjectionRepo) Save(_ context.Context, projection ports.Projection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projection = &projection
	return nil
}

func (r *inMemoryProjectionRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projection = nil
	return nil
}
