package domain

import "strings"

// Connection is the business record linking an account to a Square merchant.
type Connection struct {
	ID                      string
	CreatedAt               int64
	Name                    string
	Status                  string
	Reason                  string
	Currency                string
	ProductionApplicationID string
	ProductionAccessToken   string
	SandboxApplicationID    string
	SandboxAccessToken      string
	ProductionLocationID    string
	SandboxLocationID       string
	Mode                    string
	InstructionLink         string
	MerchantID              string
	AuthCode                string
	RefreshToken            string
}

// Active reports whether a Square merchant is linked. A non-empty merchant id
// is the only signal for that.
func (c *Connection) Active() bool {
	return c != nil && strings.TrimSpace(c.MerchantID) != ""
}

// ConnectionUpdate carries the fields to change. Empty fields are left as they are.
type ConnectionUpdate struct {
	Name       string `json:"name,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	Currency   string `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
}

func (u ConnectionUpdate) Empty() bool {
	return u.Name == "" && u.LocationID == "" && u.Currency == ""
}

type Address struct {
	Line1      string
	Line2      string
	Locality   string
	PostalCode string
	Country    string
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

type Location struct {
	ID           string
	Name         string
	Address      *Address
	Timezone     string
	Capabilities []string
	Status       string
	CreatedAt    string
	MerchantID   string
	Country      string
	LanguageCode string
	Currency     string
	BusinessName string
	Type         string
	WebsiteURL   string
	Coordinates  *Coordinates
	MCC          string
}

func (l Location) DisplayName() string {
	if l.BusinessName != "" {
		return l.BusinessName
	}
	if l.Name != "" {
		return l.Name
	}
	return "Unnamed Location"
}

func (l Location) FormattedAddress() string {
	if l.Address == nil {
		return "Address not available"
	}

	return l.Address.Line1 + ", " + l.Address.Locality + " " + l.Address.PostalCode + ", " + l.Address.Country
}

// UpdateFor builds the connection update that binds this location.
func (l Location) UpdateFor() ConnectionUpdate {
	name := l.BusinessName
	if name == "" {
		name = l.Name
	}

	return ConnectionUpdate{
		Name:       name,
		LocationID: l.ID,
		Currency:   l.Currency,
	}
}

func FindLocation(locations []Location, id string) (Location, bool) {
	for _, location := range locations {
		if location.ID == id {
			return location, true
		}
	}
	return Location{}, false
}
