package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	LogLevel  string `env:"SQUARELINK_LOG_LEVEL, default=warn"`
	LogPretty bool   `env:"SQUARELINK_LOG_PRETTY, default=true"`

	// TokenBackend selects the credential slot: chain, file, pass or memory.
	TokenBackend string `env:"SQUARELINK_TOKEN_BACKEND, default=chain"`

	API    APIConfig
	Square SquareConfig
}

type APIConfig struct {
	BaseURL             string `env:"SQUARELINK_API_BASE_URL, default=https://xwqm-zvzg-uzfr.n7e.xano.io/api:27BQ3PIV"`
	SubscriptionBaseURL string `env:"SQUARELINK_SUBSCRIPTION_API_BASE_URL, default=https://xwqm-zvzg-uzfr.n7e.xano.io/api:fjTsAN4K"`
}

type SquareConfig struct {
	AuthorizeURL    string        `env:"SQUARELINK_SQUARE_AUTHORIZE_URL, default=https://squareup.com/oauth2/authorize"`
	ClientID        string        `env:"SQUARELINK_SQUARE_CLIENT_ID, default=sq0idp-8kztSVgh4k2MrA47TAO_XA"`
	Scopes          []string      `env:"SQUARELINK_SQUARE_SCOPES, default=CUSTOMERS_WRITE,CUSTOMERS_READ,PAYMENTS_READ,PAYMENTS_WRITE,SUBSCRIPTIONS_WRITE,SUBSCRIPTIONS_READ,ITEMS_READ,ORDERS_WRITE,INVOICES_WRITE,MERCHANT_PROFILE_READ,INVOICES_READ,PAYMENTS_WRITE_SHARED_ONFILE,ITEMS_WRITE,ORDERS_READ"`
	CallbackListen  string        `env:"SQUARELINK_CALLBACK_LISTEN, default=127.0.0.1:3000"`
	CallbackTimeout time.Duration `env:"SQUARELINK_CALLBACK_TIMEOUT, default=5m"`
	LandingURL      string        `env:"SQUARELINK_LANDING_URL, default=/dashboard"`
	RetryURL        string        `env:"SQUARELINK_RETRY_URL, default=/settings"`
}

// Load reads the configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &cfg, nil
}

// LoadFrom reads the configuration from an explicit lookup, handy in tests.
func LoadFrom(ctx context.Context, lookup envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookup}); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &cfg, nil
}
