package status

import (
	"testing"
	"time"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedSnapshot() domain.Snapshot {
	return domain.Snapshot{
		State:      domain.SessionAuthenticated,
		Credential: "tok",
		Identity:   &domain.Identity{ID: "U1", Email: "ana@cafe.co", BusinessID: "B7"},
		Connection: &domain.Connection{
			ID:                   "B7",
			Name:                 "Cafe Co",
			Currency:             "USD",
			MerchantID:           "M1",
			ProductionLocationID: "L1",
		},
		Locations: []domain.Location{
			{ID: "L1", Name: "Main", Currency: "USD", Address: &domain.Address{Line1: "1 Main St", Locality: "NYC", PostalCode: "10001", Country: "US"}},
			{ID: "L2", Name: "Kiosk", Currency: "USD"},
		},
		Subscriptions: &domain.SubscriptionData{
			Plans: []domain.Plan{{ID: 1, ObjectID: "PLAN_A", Name: "Gold", Status: "ACTIVE"}, {ID: 2, ObjectID: "PLAN_B", Name: "Silver"}},
			Variations: []domain.PlanVariation{
				{ID: 9, PlanID: "PLAN_A", Name: "Monthly", Cadence: "MONTHLY", Amount: 1500, TaxPercentage: 8.5},
			},
		},
	}
}

func TestRenderConnectedSnapshot(t *testing.T) {
	output, err := Render(FromSnapshot(connectedSnapshot()), RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "Square Connection")
	assert.Contains(t, output, "state: authenticated")
	assert.Contains(t, output, "account: ana@cafe.co")
	assert.Contains(t, output, "business: Cafe Co")
	assert.Contains(t, output, "connected")
	assert.Contains(t, output, "merchant: M1")
	assert.Contains(t, output, "location: Main (L1)")
	assert.Contains(t, output, "Locations (2)")
	assert.Contains(t, output, "* L1  Main  USD")
	assert.Contains(t, output, "1 Main St, NYC 10001, US")
	assert.Contains(t, output, "Address not available")
	assert.Contains(t, output, "Gold")
	assert.Contains(t, output, "- Monthly: 15.00 USD / monthly  tax 8.50%")
	assert.Contains(t, output, "no variations")
	assert.NotContains(t, output, "cached")
}

func TestRenderTentativeLocationIsMarkedSelected(t *testing.T) {
	snapshot := connectedSnapshot()
	snapshot.TentativeLocation = &snapshot.Locations[1]

	output, err := Render(FromSnapshot(snapshot), RenderOptions{Sections: SectionConnection})

	require.NoError(t, err)
	assert.Contains(t, output, "location: Kiosk (L2)")
	assert.NotContains(t, output, "Locations (")
}

func TestRenderInactiveConnection(t *testing.T) {
	snapshot := connectedSnapshot()
	snapshot.Connection.MerchantID = ""
	snapshot.Connection.ProductionLocationID = ""
	snapshot.BusinessError = "Failed to get business info"

	output, err := Render(FromSnapshot(snapshot), RenderOptions{Sections: SectionConnection})

	require.NoError(t, err)
	assert.Contains(t, output, "not connected")
	assert.Contains(t, output, "location: none")
	assert.Contains(t, output, "error: Failed to get business info")
	assert.NotContains(t, output, "merchant:")
}

func TestRenderUnauthenticatedShowsAuthError(t *testing.T) {
	output, err := Render(FromSnapshot(domain.Snapshot{
		State:     domain.SessionAuthenticationFailed,
		AuthError: "Invalid credentials",
	}), RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "state: authentication failed")
	assert.Contains(t, output, "auth error: Invalid credentials")
	assert.Contains(t, output, "Not logged in")
	assert.NotContains(t, output, "Square\n")
}

func TestRenderCachedProjectionMarksStale(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	projection := ports.Projection{
		IdentityEmail: "ana@cafe.co",
		Connection:    &domain.Connection{ID: "B7", MerchantID: "M1", ProductionLocationID: "L1"},
		Locations:     []domain.Location{{ID: "L1", Name: "Main"}},
		CapturedAt:    now.Add(-26 * time.Hour),
	}

	output, err := Render(FromProjection(projection), RenderOptions{Now: now, StaleAfter: 24 * time.Hour})

	require.NoError(t, err)
	assert.Contains(t, output, "cached 26 hours ago [stale]")
	assert.Contains(t, output, "location: Main (L1)")
	assert.Contains(t, output, "No subscription plans.")
}

func TestRenderCachedProjectionWithoutNow(t *testing.T) {
	projection := ports.Projection{
		IdentityEmail: "ana@cafe.co",
		CapturedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	output, err := Render(FromProjection(projection), RenderOptions{StaleAfter: time.Hour})

	require.NoError(t, err)
	assert.Contains(t, output, "cached 2026-03-01 12:00 UTC")
	assert.NotContains(t, output, "[stale]")
	assert.Contains(t, output, "No business on this account.")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "15.00 USD", FormatAmount(1500, "USD"))
	assert.Equal(t, "0.05", FormatAmount(5, ""))
	assert.Equal(t, "-1.25 EUR", FormatAmount(-125, "EUR"))
}

func TestHumanAge(t *testing.T) {
	assert.Equal(t, "just now", humanAge(10*time.Second))
	assert.Equal(t, "1 minute ago", humanAge(time.Minute))
	assert.Equal(t, "5 hours ago", humanAge(5*time.Hour))
	assert.Equal(t, "3 days ago", humanAge(72*time.Hour))
}

func TestModelRendersRequestedSectionsInOrder(t *testing.T) {
	m := newModel(FromSnapshot(connectedSnapshot()), RenderOptions{Sections: SectionPlans | SectionConnection})
	assert.Equal(t, []Section{SectionConnection, SectionPlans}, m.pending)

	msg := m.Init()()
	var (
		next tea.Model = m
		cmd  tea.Cmd
	)
	var seen []Section
	for {
		next, cmd = next.Update(msg)
		if section, ok := msg.(sectionMsg); ok {
			seen = append(seen, section.section)
		}
		msg = cmd()
		if _, quit := msg.(tea.QuitMsg); quit {
			break
		}
	}

	assert.Equal(t, []Section{SectionConnection, SectionPlans}, seen)
	output := next.View()
	assert.Contains(t, output, "Subscription plans")
	assert.NotContains(t, output, "Locations (")
}

func TestModelSkipsSectionsWhenNotLoggedIn(t *testing.T) {
	m := newModel(FromSnapshot(domain.Snapshot{State: domain.SessionUnauthenticated}), RenderOptions{})

	next, cmd := m.Update(m.Init()())
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)
	assert.Contains(t, next.View(), "Not logged in.")
}

func TestAgeOfProjectionView(t *testing.T) {
	captured := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view := View{CapturedAt: captured}

	assert.False(t, ageOf(view, RenderOptions{}).known)
	assert.False(t, ageOf(View{}, RenderOptions{Now: captured}).known)

	fresh := ageOf(view, RenderOptions{Now: captured.Add(time.Hour), StaleAfter: 24 * time.Hour})
	assert.True(t, fresh.known)
	assert.Equal(t, time.Hour, fresh.age)
	assert.False(t, fresh.stale())

	stale := ageOf(view, RenderOptions{Now: captured.Add(48 * time.Hour), StaleAfter: 24 * time.Hour})
	assert.True(t, stale.stale())
	assert.Equal(t, lipgloss.Color("240"), ageColor(stale.age, stale.staleAfter))

	future := ageOf(view, RenderOptions{Now: captured.Add(-time.Minute)})
	assert.Zero(t, future.age)
}
