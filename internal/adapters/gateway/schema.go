package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bnema/squarelink-cli/internal/domain"
)

// flexString accepts a JSON string or number. The account service issues
// numeric ids for some records and string ids for others.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(trimmed))
	}
	*f = flexString(n.String())
	return nil
}

type authTokenSchema struct {
	AuthToken string `json:"authToken" validate:"required"`
}

type messageSchema struct {
	Message string `json:"message"`
}

type identitySchema struct {
	ID               flexString `json:"id" validate:"required"`
	CreatedAt        int64      `json:"created_at"`
	Name             string     `json:"name"`
	Email            string     `json:"email" validate:"required"`
	BusinessID       flexString `json:"business_id"`
	Role             string     `json:"role"`
	SquareCustomerID string     `json:"square_customer_id"`
}

func (s identitySchema) toDomain() domain.Identity {
	return domain.Identity{
		ID:               string(s.ID),
		Name:             s.Name,
		Email:            s.Email,
		BusinessID:       string(s.BusinessID),
		Role:             s.Role,
		SquareCustomerID: s.SquareCustomerID,
		CreatedAt:        s.CreatedAt,
	}
}

type businessSchema struct {
	ID                      flexString `json:"id" validate:"required"`
	CreatedAt               int64      `json:"created_at"`
	Name                    string     `json:"name"`
	Status                  string     `json:"status"`
	Reason                  string     `json:"reason"`
	Currency                string     `json:"currency"`
	ProductionApplicationID string     `json:"production_application_id"`
	ProductionAccessToken   string     `json:"production_access_token"`
	SandboxApplicationID    string     `json:"sandbox_application_id"`
	SandboxAccessToken      string     `json:"sandbox_access_token"`
	ProductionLocationID    string     `json:"production_location_id"`
	SandboxLocationID       string     `json:"sandbox_location_id"`
	Mode                    string     `json:"mode"`
	InstructionLink         string     `json:"instruction_link"`
	MerchantID              string     `json:"merchant_id"`
	AuthCode                string     `json:"auth_code"`
	RefreshToken            string     `json:"refresh_token"`
}

func (s businessSchema) toDomain() domain.Connection {
	return domain.Connection{
		ID:                      string(s.ID),
		CreatedAt:               s.CreatedAt,
		Name:                    s.Name,
		Status:                  s.Status,
		Reason:                  s.Reason,
		Currency:                s.Currency,
		ProductionApplicationID: s.ProductionApplicationID,
		ProductionAccessToken:   s.ProductionAccessToken,
		SandboxApplicationID:    s.SandboxApplicationID,
		SandboxAccessToken:      s.SandboxAccessToken,
		ProductionLocationID:    s.ProductionLocationID,
		SandboxLocationID:       s.SandboxLocationID,
		Mode:                    s.Mode,
		InstructionLink:         s.InstructionLink,
		MerchantID:              s.MerchantID,
		AuthCode:                s.AuthCode,
		RefreshToken:            s.RefreshToken,
	}
}

type addressSchema struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	Locality     string `json:"locality"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

type coordinatesSchema struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type locationSchema struct {
	ID           string             `json:"id" validate:"required"`
	Name         string             `json:"name"`
	Address      *addressSchema     `json:"address"`
	Timezone     string             `json:"timezone"`
	Capabilities []string           `json:"capabilities"`
	Status       string             `json:"status"`
	CreatedAt    string             `json:"created_at"`
	MerchantID   string             `json:"merchant_id"`
	Country      string             `json:"country"`
	LanguageCode string             `json:"language_code"`
	Currency     string             `json:"currency"`
	BusinessName string             `json:"business_name"`
	Type         string             `json:"type"`
	WebsiteURL   string             `json:"website_url"`
	Coordinates  *coordinatesSchema `json:"coordinates"`
	MCC          string             `json:"mcc"`
}

func (s locationSchema) toDomain() domain.Location {
	location := domain.Location{
		ID:           s.ID,
		Name:         s.Name,
		Timezone:     s.Timezone,
		Capabilities: append([]string(nil), s.Capabilities...),
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		MerchantID:   s.MerchantID,
		Country:      s.Country,
		LanguageCode: s.LanguageCode,
		Currency:     s.Currency,
		BusinessName: s.BusinessName,
		Type:         s.Type,
		WebsiteURL:   s.WebsiteURL,
		MCC:          s.MCC,
	}
	if s.Address != nil {
		location.Address = &domain.Address{
			Line1:      s.Address.AddressLine1,
			Line2:      s.Address.AddressLine2,
			Locality:   s.Address.Locality,
			PostalCode: s.Address.PostalCode,
			Country:    s.Address.Country,
		}
	}
	if s.Coordinates != nil {
		location.Coordinates = &domain.Coordinates{
			Latitude:  s.Coordinates.Latitude,
			Longitude: s.Coordinates.Longitude,
		}
	}
	return location
}

type planSchema struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Version    int64      `json:"version"`
	ObjectID   string     `json:"object_id" validate:"required"`
	CreatedAt  int64      `json:"created_at"`
	BusinessID flexString `json:"business_id"`
}

type planVariationSchema struct {
	ID                     int64      `json:"id"`
	Name                   string     `json:"name"`
	Type                   string     `json:"type"`
	Amount                 int64      `json:"amount"`
	Credit                 int64      `json:"credit"`
	Status                 string     `json:"status"`
	Cadence                string     `json:"cadence"`
	PlanID                 string     `json:"plan_id" validate:"required"`
	Version                int64      `json:"version"`
	ObjectID               string     `json:"object_id"`
	CreatedAt              int64      `json:"created_at"`
	BusinessID             flexString `json:"business_id"`
	Description            string     `json:"description"`
	GiftCredit             int64      `json:"gift_credit"`
	TaxPercentage          float64    `json:"tax_percentage"`
	CreditChargeAmount     int64      `json:"credit_charge_amount"`
	GiftCreditChargeAmount int64      `json:"gift_credit_charge_amount"`
}

type subscriptionDataSchema struct {
	PlanVariations    []planVariationSchema `json:"plan_variations" validate:"dive"`
	SubscriptionPlans []planSchema          `json:"subscription_plans" validate:"dive"`
}

func (s subscriptionDataSchema) toDomain() domain.SubscriptionData {
	data := domain.SubscriptionData{
		Plans:      make([]domain.Plan, 0, len(s.SubscriptionPlans)),
		Variations: make([]domain.PlanVariation, 0, len(s.PlanVariations)),
	}
	for _, plan := range s.SubscriptionPlans {
		data.Plans = append(data.Plans, domain.Plan{
			ID:         plan.ID,
			ObjectID:   plan.ObjectID,
			Name:       plan.Name,
			Status:     plan.Status,
			Version:    plan.Version,
			CreatedAt:  plan.CreatedAt,
			BusinessID: string(plan.BusinessID),
		})
	}
	for _, variation := range s.PlanVariations {
		data.Variations = append(data.Variations, domain.PlanVariation{
			ID:                     variation.ID,
			ObjectID:               variation.ObjectID,
			PlanID:                 variation.PlanID,
			Name:                   variation.Name,
			Type:                   variation.Type,
			Cadence:                variation.Cadence,
			Amount:                 variation.Amount,
			Credit:                 variation.Credit,
			CreditChargeAmount:     variation.CreditChargeAmount,
			GiftCredit:             variation.GiftCredit,
			GiftCreditChargeAmount: variation.GiftCreditChargeAmount,
			TaxPercentage:          variation.TaxPercentage,
			Status:                 variation.Status,
			Version:                variation.Version,
			Description:            variation.Description,
			BusinessID:             string(variation.BusinessID),
			CreatedAt:              variation.CreatedAt,
		})
	}
	return data
}

type oauthReportSchema struct {
	Code             string  `json:"code,omitempty"`
	State            string  `json:"state"`
	Error            string  `json:"error,omitempty"`
	ErrorDescription string  `json:"error_description,omitempty"`
	Timestamp        string  `json:"timestamp"`
	RedirectURI      string  `json:"redirect_uri,omitempty"`
	AuthToken        *string `json:"authToken"`
}

func toOAuthReportSchema(report domain.OAuthReport, timestampLayout string) oauthReportSchema {
	schema := oauthReportSchema{
		Code:             report.Code,
		State:            report.State,
		Error:            report.Error,
		ErrorDescription: report.ErrorDescription,
		Timestamp:        report.Timestamp.UTC().Format(timestampLayout),
		RedirectURI:      report.RedirectURI,
	}
	if report.HasCredential {
		token := report.Credential.String()
		schema.AuthToken = &token
	}
	return schema
}

type tokenBundleSchema struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresAt             string `json:"expires_at"`
	MerchantID            string `json:"merchant_id"`
	RefreshToken          string `json:"refresh_token"`
	ShortLivedAccessToken string `json:"short_lived_access_token"`
}

func (s tokenBundleSchema) toDomain() domain.TokenBundle {
	return domain.TokenBundle{
		AccessToken:           s.AccessToken,
		TokenType:             s.TokenType,
		ExpiresAt:             s.ExpiresAt,
		MerchantID:            s.MerchantID,
		RefreshToken:          s.RefreshToken,
		ShortLivedAccessToken: s.ShortLivedAccessToken,
	}
}
