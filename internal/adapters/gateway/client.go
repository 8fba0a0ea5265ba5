package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxResponseBytes = 4 << 20
	maxErrorBytes    = 64 << 10

	// isoTimestamp matches the millisecond UTC form browsers emit.
	isoTimestamp = "2006-01-02T15:04:05.000Z"

	requestIDHeader = "X-Request-Id"
)

type Options struct {
	AccountBaseURL      string
	SubscriptionBaseURL string
	HTTPClient          *http.Client
	Logger              zerolog.Logger
}

// Client talks to the account, business and subscription service. It never
// retries and never writes the token store.
type Client struct {
	accountBase      string
	subscriptionBase string
	http             *http.Client
	tokens           ports.TokenStore
	validate         *validator.Validate
	logger           zerolog.Logger
	newRequestID     func() string
}

var (
	_ ports.Gateway     = (*Client)(nil)
	_ ports.Diagnostics = (*Client)(nil)
)

func NewClient(tokens ports.TokenStore, opts Options) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	accountBase, err := normalizeBaseURL(opts.AccountBaseURL)
	if err != nil {
		return nil, fmt.Errorf("account base url: %w", err)
	}
	subscriptionBase, err := normalizeBaseURL(opts.SubscriptionBaseURL)
	if err != nil {
		return nil, fmt.Errorf("subscription base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		accountBase:      accountBase,
		subscriptionBase: subscriptionBase,
		http:             httpClient,
		tokens:           tokens,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		logger:           opts.Logger,
		newRequestID:     uuid.NewString,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("url host is required")
	}
	return strings.TrimRight(raw, "/"), nil
}

func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (domain.Credential, error) {
	var out authTokenSchema
	if err := c.do(ctx, endpointSignup, nil, req, &out); err != nil {
		return "", err
	}
	return domain.Credential(out.AuthToken), nil
}

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (domain.Credential, error) {
	var out authTokenSchema
	if err := c.do(ctx, endpointLogin, nil, req, &out); err != nil {
		return "", err
	}
	return domain.Credential(out.AuthToken), nil
}

func (c *Client) GetIdentity(ctx context.Context) (domain.Identity, error) {
	var out identitySchema
	if err := c.do(ctx, endpointMe, nil, nil, &out); err != nil {
		return domain.Identity{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) GetConnection(ctx context.Context) (domain.Connection, error) {
	var out businessSchema
	if err := c.do(ctx, endpointBusiness, nil, nil, &out); err != nil {
		return domain.Connection{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) ListLocations(ctx context.Context) ([]domain.Location, error) {
	var out []locationSchema
	if err := c.do(ctx, endpointLocations, nil, nil, &out); err != nil {
		return nil, err
	}

	locations := make([]domain.Location, 0, len(out))
	for i, entry := range out {
		if err := c.validate.Struct(entry); err != nil {
			return nil, fmt.Errorf("%s: location %d: %w: %v", endpointLocations.name, i, domain.ErrMalformedResponse, err)
		}
		locations = append(locations, entry.toDomain())
	}
	return locations, nil
}

func (c *Client) UpdateConnection(ctx context.Context, update domain.ConnectionUpdate) (domain.Connection, error) {
	var out businessSchema
	if err := c.do(ctx, endpointUpdateBusiness, nil, update, &out); err != nil {
		return domain.Connection{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) RevokeConnection(ctx context.Context) error {
	return c.do(ctx, endpointRevoke, nil, nil, nil)
}

func (c *Client) ListSubscriptionData(ctx context.Context, businessID string) (domain.SubscriptionData, error) {
	query := url.Values{}
	query.Set("business_id", businessID)

	var out subscriptionDataSchema
	if err := c.do(ctx, endpointSubscriptionData, query, nil, &out); err != nil {
		return domain.SubscriptionData{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) CreatePlan(ctx context.Context, plan domain.NewPlan) error {
	return c.do(ctx, endpointCreatePlan, nil, plan, nil)
}

func (c *Client) CreatePlanVariation(ctx context.Context, variation domain.NewPlanVariation) error {
	return c.do(ctx, endpointCreateVariation, nil, variation, nil)
}

// ExchangeAuthorizationCode hands the OAuth redirect outcome to the account
// service, which performs the Square token exchange server-side. The service
// may or may not echo the resulting bundle.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, report domain.OAuthReport) (domain.TokenBundle, error) {
	var out tokenBundleSchema
	if err := c.do(ctx, endpointTokenExchange, nil, toOAuthReportSchema(report, isoTimestamp), &out); err != nil {
		return domain.TokenBundle{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) ReportOAuth(ctx context.Context, report domain.OAuthReport) error {
	_, err := c.ExchangeAuthorizationCode(ctx, report)
	return err
}

func (c *Client) do(ctx context.Context, ep endpoint, query url.Values, body any, out any) error {
	authHeader, err := c.authorization(ctx, ep.auth)
	if err != nil {
		return fmt.Errorf("%s: %w", ep.name, err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", ep.name, err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := c.baseFor(ep.base) + ep.path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", ep.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, c.newRequestID())
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", ep.name, errors.Join(domain.ErrUnreachable, ctxErr))
		}
		return fmt.Errorf("%s: %w: %v", ep.name, domain.ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("endpoint", ep.name).
		Str("method", ep.method).
		Str("path", ep.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Str("request_id", req.Header.Get(requestIDHeader)).
		Msg("account service call")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s: %w", ep.name, rejection(resp, ep.defaultErr))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %v", ep.name, domain.ErrUnreachable, err)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if ep.auth == authBearerOptional {
			return nil
		}
		return fmt.Errorf("%s: %w: empty body", ep.name, domain.ErrMalformedResponse)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", ep.name, domain.ErrMalformedResponse, err)
	}
	if err := c.validateResponse(out); err != nil {
		return fmt.Errorf("%s: %w: %v", ep.name, domain.ErrMalformedResponse, err)
	}

	return nil
}

func (c *Client) validateResponse(out any) error {
	switch v := out.(type) {
	case *[]locationSchema, *tokenBundleSchema:
		return nil
	default:
		return c.validate.Struct(v)
	}
}

func (c *Client) authorization(ctx context.Context, scheme authScheme) (string, error) {
	if scheme == authNone {
		return "", nil
	}

	credential, err := c.tokens.Get(ctx)
	if err != nil {
		if scheme == authBearerOptional {
			return "", nil
		}
		if errors.Is(err, domain.ErrCredentialAbsent) {
			return "", domain.ErrUnauthenticated
		}
		return "", fmt.Errorf("read credential: %w", err)
	}

	if scheme == authRaw {
		return credential.String(), nil
	}
	return credential.Bearer(), nil
}

func (c *Client) baseFor(base apiBase) string {
	if base == subscriptionAPI {
		return c.subscriptionBase
	}
	return c.accountBase
}

func rejection(resp *http.Response, fallback string) *domain.RemoteRejectedError {
	rejected := &domain.RemoteRejectedError{Status: resp.StatusCode, Message: fallback}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	if err != nil || len(data) == 0 {
		return rejected
	}

	var payload messageSchema
	if err := json.Unmarshal(data, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		rejected.Message = payload.Message
	}
	return rejected
}
