package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
	"github.com/charmbracelet/lipgloss"
)

// Section selects which blocks Render prints after the account header.
type Section uint8

const (
	SectionConnection Section = 1 << iota
	SectionLocations
	SectionPlans

	SectionAll = SectionConnection | SectionLocations | SectionPlans
)

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
	// Sections defaults to SectionAll.
	Sections Section
}

// View is the renderable subset of a session snapshot or cached projection.
type View struct {
	Email              string
	State              domain.SessionState
	Connection         *domain.Connection
	Locations          []domain.Location
	SelectedLocationID string
	Subscriptions      *domain.SubscriptionData

	AuthError         string
	BusinessError     string
	SubscriptionError string

	// CapturedAt is set when the view comes from the local projection.
	CapturedAt time.Time
}

func FromSnapshot(snapshot domain.Snapshot) View {
	view := View{
		State:             snapshot.State,
		Connection:        snapshot.Connection,
		Locations:         snapshot.Locations,
		Subscriptions:     snapshot.Subscriptions,
		AuthError:         snapshot.AuthError,
		BusinessError:     snapshot.BusinessError,
		SubscriptionError: snapshot.SubscriptionError,
	}
	if snapshot.Identity != nil {
		view.Email = snapshot.Identity.Email
	}
	if selected, ok := snapshot.SelectedLocation(); ok {
		view.SelectedLocationID = selected.ID
	} else if snapshot.Connection != nil {
		view.SelectedLocationID = snapshot.Connection.ProductionLocationID
	}
	return view
}

func FromProjection(projection ports.Projection) View {
	view := View{
		Email:         projection.IdentityEmail,
		State:         domain.SessionAuthenticated,
		Connection:    projection.Connection,
		Locations:     projection.Locations,
		Subscriptions: projection.Subscriptions,
		CapturedAt:    projection.CapturedAt,
	}
	if projection.Connection != nil {
		view.SelectedLocationID = projection.Connection.ProductionLocationID
	}
	return view
}

func (v View) authenticated() bool {
	return v.State == domain.SessionAuthenticated
}

func headerBlocks(view View, age cacheAge, s styles) []string {
	blocks := []string{
		s.title.Render("Square Connection"),
		s.header.Render(headerLine(view, age, s)),
	}

	if view.AuthError != "" {
		blocks = append(blocks, s.warning.Render("auth error: "+view.AuthError))
	}
	if !view.authenticated() {
		blocks = append(blocks, s.empty.Render("Not logged in. Run squarelink login to sign in."))
	}

	return blocks
}

func renderSection(view View, section Section, s styles) string {
	switch section {
	case SectionConnection:
		return renderConnection(view, s)
	case SectionLocations:
		return renderLocations(view, s)
	case SectionPlans:
		return renderPlans(view, s)
	default:
		return ""
	}
}

func headerLine(view View, age cacheAge, s styles) string {
	parts := []string{fmt.Sprintf("state: %s", stateLabel(view.State))}
	if view.Email != "" {
		parts = append(parts, "account: "+view.Email)
	}

	header := strings.Join(parts, "  ")
	if view.CapturedAt.IsZero() {
		return header
	}

	if !age.known {
		return header + "  " + s.meta.Render("cached "+view.CapturedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	label := "cached " + humanAge(age.age)
	if age.stale() {
		label += " [stale]"
	}
	return header + "  " + lipgloss.NewStyle().Foreground(ageColor(age.age, age.staleAfter)).Render(label)
}

func renderConnection(view View, s styles) string {
	parts := []string{s.account.Render("Square")}

	if view.BusinessError != "" {
		parts = append(parts, s.warning.Render("error: "+view.BusinessError))
	}

	c := view.Connection
	if c == nil {
		parts = append(parts, s.empty.Render("No business on this account."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	status := s.warning.Render("not connected")
	if c.Active() {
		status = s.active.Render("connected")
	}
	parts = append(parts,
		keyValue(s, "business", nonEmpty(c.Name, c.ID)),
		s.key.Render("status: ")+status,
	)
	if c.Active() {
		parts = append(parts, keyValue(s, "merchant", c.MerchantID))
	}
	if c.Currency != "" {
		parts = append(parts, keyValue(s, "currency", c.Currency))
	}

	location := "none"
	if view.SelectedLocationID != "" {
		location = view.SelectedLocationID
		if found, ok := domain.FindLocation(view.Locations, view.SelectedLocationID); ok {
			location = fmt.Sprintf("%s (%s)", found.DisplayName(), found.ID)
		}
	}
	parts = append(parts, keyValue(s, "location", location))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderLocations(view View, s styles) string {
	parts := []string{s.account.Render(fmt.Sprintf("Locations (%d)", len(view.Locations)))}

	if len(view.Locations) == 0 {
		parts = append(parts, s.empty.Render("No locations loaded."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, location := range view.Locations {
		marker := "  "
		line := fmt.Sprintf("%s  %s", location.ID, location.DisplayName())
		if location.Currency != "" {
			line += "  " + location.Currency
		}
		if location.ID == view.SelectedLocationID {
			marker = "* "
			parts = append(parts, s.selected.Render(marker+line))
		} else {
			parts = append(parts, s.detail.Render(marker+line))
		}
		parts = append(parts, s.meta.Render("    "+location.FormattedAddress()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderPlans(view View, s styles) string {
	parts := []string{s.account.Render("Subscription plans")}

	if view.SubscriptionError != "" {
		parts = append(parts, s.warning.Render("error: "+view.SubscriptionError))
	}
	if view.Subscriptions == nil || len(view.Subscriptions.Plans) == 0 {
		parts = append(parts, s.empty.Render("No subscription plans."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	currency := ""
	if view.Connection != nil {
		currency = view.Connection.Currency
	}

	for _, plan := range view.Subscriptions.Plans {
		title := nonEmpty(plan.Name, plan.ObjectID)
		if plan.Status != "" {
			title += " " + s.meta.Render("["+strings.ToLower(plan.Status)+"]")
		}
		parts = append(parts, s.planName.Render(title))

		variations := view.Subscriptions.VariationsForPlan(plan)
		if len(variations) == 0 {
			parts = append(parts, s.empty.Render("  no variations"))
			continue
		}
		for _, variation := range variations {
			parts = append(parts, s.variation.Render(variationLine(variation, currency)))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func variationLine(variation domain.PlanVariation, currency string) string {
	line := fmt.Sprintf("  - %s: %s / %s", nonEmpty(variation.Name, variation.ObjectID), FormatAmount(variation.Amount, currency), strings.ToLower(variation.Cadence))
	if variation.Credit > 0 {
		line += fmt.Sprintf("  credit %s", FormatAmount(variation.Credit, currency))
	}
	if variation.TaxPercentage > 0 {
		line += fmt.Sprintf("  tax %.2f%%", variation.TaxPercentage)
	}
	return line
}

// FormatAmount prints an amount held in minor units, e.g. 1500 USD as 15.00 USD.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	amount := fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

func keyValue(s styles, key, value string) string {
	return s.key.Render(key+": ") + s.detail.Render(value)
}

func stateLabel(state domain.SessionState) string {
	if state == "" {
		return string(domain.SessionUnauthenticated)
	}
	return strings.ReplaceAll(string(state), "_", " ")
}

func nonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return "-"
}

func humanAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return pluralize(int(age/time.Minute), "minute") + " ago"
	case age < 48*time.Hour:
		return pluralize(int(age/time.Hour), "hour") + " ago"
	default:
		return pluralize(int(age/(24*time.Hour)), "day") + " ago"
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ageColor fades from bright white for a fresh cache to grey once stale.
func ageColor(age, staleAfter time.Duration) lipgloss.Color {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}

	normalized := age.Seconds() / staleAfter.Seconds()
	normalized = math.Max(0, math.Min(1, normalized))

	// ANSI 256 greyscale ramp: 255 bright, 240 faded
	colorCode := int(255 - (255-240)*normalized)
	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
