package toml

import "fmt"

const currentSchemaVersion = 1

type projectionFileSchema struct {
	Version       int                     `toml:"version"`
	CapturedAt    string                  `toml:"captured_at"`
	IdentityEmail string                  `toml:"identity_email"`
	BusinessID    string                  `toml:"business_id"`
	Connection    *connectionSchema       `toml:"connection,omitempty"`
	Locations     []locationSchema        `toml:"locations,omitempty"`
	Subscriptions *subscriptionDataSchema `toml:"subscriptions,omitempty"`
}

func (s *projectionFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s projectionFileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported projection schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

// connectionSchema leaves out the access and refresh tokens; they are never
// written to disk.
type connectionSchema struct {
	ID                      string `toml:"id"`
	Name                    string `toml:"name"`
	Status                  string `toml:"status,omitempty"`
	Reason                  string `toml:"reason,omitempty"`
	Currency                string `toml:"currency,omitempty"`
	Mode                    string `toml:"mode,omitempty"`
	MerchantID              string `toml:"merchant_id,omitempty"`
	ProductionApplicationID string `toml:"production_application_id,omitempty"`
	SandboxApplicationID    string `toml:"sandbox_application_id,omitempty"`
	ProductionLocationID    string `toml:"production_location_id,omitempty"`
	SandboxLocationID       string `toml:"sandbox_location_id,omitempty"`
	InstructionLink         string `toml:"instruction_link,omitempty"`
	CreatedAt               int64  `toml:"created_at,omitempty"`
}

type locationSchema struct {
	ID           string   `toml:"id"`
	Name         string   `toml:"name"`
	BusinessName string   `toml:"business_name,omitempty"`
	Status       string   `toml:"status,omitempty"`
	Currency     string   `toml:"currency,omitempty"`
	Timezone     string   `toml:"timezone,omitempty"`
	Country      string   `toml:"country,omitempty"`
	MCC          string   `toml:"mcc,omitempty"`
	Capabilities []string `toml:"capabilities,omitempty"`

	AddressLine1   string `toml:"address_line_1,omitempty"`
	AddressLine2   string `toml:"address_line_2,omitempty"`
	Locality       string `toml:"locality,omitempty"`
	PostalCode     string `toml:"postal_code,omitempty"`
	AddressCountry string `toml:"address_country,omitempty"`
	HasAddress     bool   `toml:"has_address,omitempty"`
}

type subscriptionDataSchema struct {
	Plans      []planSchema      `toml:"plans,omitempty"`
	Variations []variationSchema `toml:"variations,omitempty"`
}

type planSchema struct {
	ID         int64  `toml:"id"`
	ObjectID   string `toml:"object_id"`
	Name       string `toml:"name"`
	Status     string `toml:"status,omitempty"`
	BusinessID string `toml:"business_id,omitempty"`
}

type variationSchema struct {
	ID            int64   `toml:"id"`
	PlanID        string  `toml:"plan_id"`
	Name          string  `toml:"name"`
	Type          string  `toml:"type,omitempty"`
	Cadence       string  `toml:"cadence,omitempty"`
	Amount        int64   `toml:"amount"`
	Credit        int64   `toml:"credit,omitempty"`
	TaxPercentage float64 `toml:"tax_percentage,omitempty"`
	Status        string  `toml:"status,omitempty"`
}
