package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// AuthorizationRequest describes the Square authorize redirect. The redirect
// URI is registered with the Square application and is not sent.
type AuthorizationRequest struct {
	AuthURL  string
	ClientID string
	Scopes   []string
	State    string
}

func NewState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func BuildAuthorizationURL(req AuthorizationRequest) (string, error) {
	if req.AuthURL == "" {
		return "", errors.New("auth url is required")
	}
	if req.ClientID == "" {
		return "", errors.New("client id is required")
	}

	parsed, err := url.Parse(req.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("auth url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("auth url host is required")
	}

	q := parsed.Query()
	q.Set("client_id", req.ClientID)
	if scopes := cleanScopes(req.Scopes); len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}
	// Square otherwise reuses an existing browser session for the seller.
	q.Set("session", "False")
	if req.State != "" {
		q.Set("state", req.State)
	}
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

func cleanScopes(scopes []string) []string {
	result := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scope = strings.ToUpper(strings.TrimSpace(scope))
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		result = append(result, scope)
	}
	return result
}
