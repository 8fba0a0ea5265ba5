package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/squarelink-cli/internal/adapters/gateway"
	statusadapter "github.com/bnema/squarelink-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/squarelink-cli/internal/adapters/repo/toml"
	"github.com/bnema/squarelink-cli/internal/adapters/tokenstore"
	"github.com/bnema/squarelink-cli/internal/application"
	"github.com/bnema/squarelink-cli/internal/config"
	"github.com/bnema/squarelink-cli/internal/logger"
	"github.com/bnema/squarelink-cli/internal/ports"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// cacheStaleAfter marks projections older than this as stale in status --cached.
const cacheStaleAfter = 24 * time.Hour

type app struct {
	cfg            *config.Config
	session        *application.Session
	tokens         ports.TokenStore
	gateway        *gateway.Client
	statusRenderer func(statusadapter.View, statusadapter.RenderOptions) (string, error)
	logger         zerolog.Logger
	now            func() time.Time

	bootOnce sync.Once
	bootErr  error
}

func wireApp(ctx context.Context) (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	tokens, err := newTokenStore(cfg.TokenBackend, filepath.Join(homeDir, tomlrepo.ConfigDir))
	if err != nil {
		return nil, fmt.Errorf("wire token store: %w", err)
	}

	client, err := gateway.NewClient(tokens, gateway.Options{
		AccountBaseURL:      cfg.API.BaseURL,
		SubscriptionBaseURL: cfg.API.SubscriptionBaseURL,
		Logger:              log.With().Str("component", "gateway").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("wire gateway: %w", err)
	}

	projections, err := tomlrepo.NewProjectionRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire projection repository: %w", err)
	}

	clock := ports.SystemClock{}
	session := application.NewSession(tokens, client, application.SessionOptions{
		Projections: projections,
		Clock:       clock,
		Logger:      log.With().Str("component", "session").Logger(),
	})

	return &app{
		cfg:            cfg,
		session:        session,
		tokens:         tokens,
		gateway:        client,
		statusRenderer: statusadapter.Render,
		logger:         log,
		now:            clock.Now,
	}, nil
}

func newTokenStore(backend, root string) (ports.TokenStore, error) {
	switch backend {
	case "", "chain":
		return tokenstore.NewPassFirstWithFileFallback(root)
	case "file":
		return tokenstore.NewFileStore(root), nil
	case "pass":
		return tokenstore.NewPassStore(), nil
	case "memory":
		return tokenstore.NewMemoryStore(""), nil
	default:
		return nil, fmt.Errorf("unknown token backend %q (want chain, file, pass or memory)", backend)
	}
}

// boot restores the session from the stored credential once per process.
func (a *app) boot(ctx context.Context) error {
	a.bootOnce.Do(func() {
		a.bootErr = a.session.Boot(ctx)
		if a.bootErr != nil {
			a.logger.Debug().Err(a.bootErr).Msg("session boot failed")
		}
	})
	return a.bootErr
}

// requireSession boots and fails unless the session ended up authenticated.
func (a *app) requireSession(ctx context.Context) error {
	bootErr := a.boot(ctx)
	if a.session.Snapshot().IsAuthenticated() {
		return nil
	}
	if bootErr != nil {
		return fmt.Errorf("%w (%v)", errNotLoggedIn, bootErr)
	}
	return errNotLoggedIn
}

var errNotLoggedIn = errors.New("not logged in: run squarelink login")
