package domain

import "time"

// OAuthReport is the record forwarded to the account service when the Square
// authorization redirect returns.
type OAuthReport struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Timestamp        time.Time
	RedirectURI      string
	HasCredential    bool
	Credential       Credential
}

func (r OAuthReport) Failed() bool {
	return r.Error != ""
}

type TokenBundle struct {
	AccessToken           string
	TokenType             string
	ExpiresAt             string
	MerchantID            string
	RefreshToken          string
	ShortLivedAccessToken string
}
