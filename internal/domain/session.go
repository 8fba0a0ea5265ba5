package domain

type SessionState string

const (
	SessionUnauthenticated      SessionState = "unauthenticated"
	SessionInitializing         SessionState = "initializing"
	SessionAuthenticated        SessionState = "authenticated"
	SessionAuthenticationFailed SessionState = "authentication_failed"
)

// Snapshot is an immutable view of the session. Consumers receive copies;
// only the session mutates the underlying state.
type Snapshot struct {
	State      SessionState
	Credential Credential
	Identity   *Identity
	Connection *Connection
	// TentativeLocation is set while a location selection awaits confirmation.
	TentativeLocation *Location
	Locations         []Location
	Subscriptions     *SubscriptionData

	AuthLoading         bool
	AuthError           string
	BusinessLoading     bool
	BusinessError       string
	SubscriptionLoading bool
	SubscriptionError   string
}

func (s Snapshot) IsAuthenticated() bool {
	return s.State == SessionAuthenticated && !s.Credential.Empty()
}

// SelectedLocation returns the tentative choice when one is pending, else the
// location bound to the confirmed connection.
func (s Snapshot) SelectedLocation() (Location, bool) {
	if s.TentativeLocation != nil {
		return *s.TentativeLocation, true
	}
	if s.Connection == nil || s.Connection.ProductionLocationID == "" {
		return Location{}, false
	}
	return FindLocation(s.Locations, s.Connection.ProductionLocationID)
}

// Clone deep-copies the snapshot so callers cannot alias the store's state.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Identity != nil {
		identity := *s.Identity
		out.Identity = &identity
	}
	if s.Connection != nil {
		connection := *s.Connection
		out.Connection = &connection
	}
	if s.TentativeLocation != nil {
		location := *s.TentativeLocation
		out.TentativeLocation = &location
	}
	if s.Locations != nil {
		out.Locations = append([]Location(nil), s.Locations...)
	}
	if s.Subscriptions != nil {
		data := SubscriptionData{
			Plans:      append([]Plan(nil), s.Subscriptions.Plans...),
			Variations: append([]PlanVariation(nil), s.Subscriptions.Variations...),
		}
		out.Subscriptions = &data
	}
	return out
}
