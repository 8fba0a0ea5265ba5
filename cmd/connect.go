package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	oauthadapter "github.com/bnema/squarelink-cli/internal/adapters/oauth"
	statusadapter "github.com/bnema/squarelink-cli/internal/adapters/render/status"
	"github.com/bnema/squarelink-cli/internal/ports"
	"github.com/spf13/cobra"
)

// landingGrace keeps the callback server up after the scheduled navigation so
// the browser can load the landing page.
const landingGrace = time.Second

func newConnectCmd(app *app) *cobra.Command {
	var listenAddr string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a Square seller account through OAuth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}
			return runConnect(cmd, app, listenAddr, timeout)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Callback listen address (defaults to SQUARELINK_CALLBACK_LISTEN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the Square redirect (defaults to SQUARELINK_CALLBACK_TIMEOUT)")

	return cmd
}

func runConnect(cmd *cobra.Command, app *app, listenAddr string, timeout time.Duration) error {
	if listenAddr == "" {
		listenAddr = app.cfg.Square.CallbackListen
	}
	if timeout <= 0 {
		timeout = app.cfg.Square.CallbackTimeout
	}

	state, err := oauthadapter.NewState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}

	navigated := make(chan string, 1)
	server, err := oauthadapter.StartCallbackServer(listenAddr, func(redirectURI string) (*oauthadapter.Handler, error) {
		base := strings.TrimSuffix(redirectURI, oauthadapter.CallbackPath)
		return oauthadapter.NewHandler(oauthadapter.HandlerOptions{
			Tokens:      app.tokens,
			Diagnostics: app.gateway,
			Session:     app.session,
			Navigator: oauthadapter.NavigatorFunc(func(target string) {
				select {
				case navigated <- target:
				default:
				}
			}),
			ExpectedState: state,
			RedirectURI:   redirectURI,
			LandingURL:    resolveAgainst(base, app.cfg.Square.LandingURL),
			RetryURL:      resolveAgainst(base, app.cfg.Square.RetryURL),
			Clock:         ports.SystemClock{},
			Logger:        app.logger.With().Str("component", "oauth").Logger(),
		})
	})
	if err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			app.logger.Debug().Err(closeErr).Msg("close callback server")
		}
	}()

	authURL, err := oauthadapter.BuildAuthorizationURL(oauthadapter.AuthorizationRequest{
		AuthURL:  app.cfg.Square.AuthorizeURL,
		ClientID: app.cfg.Square.ClientID,
		Scopes:   app.cfg.Square.Scopes,
		State:    state,
	})
	if err != nil {
		return fmt.Errorf("build authorization url: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Open this URL to connect your Square account:\n%s\n", authURL)
	_, _ = fmt.Fprintf(out, "Waiting for the Square redirect on %s\n", server.RedirectURI())

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	outcome, err := server.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for square callback: %w", err)
	}
	if !outcome.Succeeded() {
		return fmt.Errorf("connect square: %s", outcome.Message)
	}

	_, _ = fmt.Fprintln(out, outcome.Message)

	select {
	case <-navigated:
		time.Sleep(landingGrace)
	case <-time.After(outcome.NavigateAfter + landingGrace):
	case <-cmd.Context().Done():
	}

	return writeView(cmd, app, statusadapter.FromSnapshot(app.session.Snapshot()), statusadapter.SectionConnection, false)
}

func resolveAgainst(base, target string) string {
	if target == "" || strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + target
}
