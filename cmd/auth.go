package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/spf13/cobra"
)

type credentialsFlags struct {
	email         string
	password      string
	passwordStdin bool
}

func (f *credentialsFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Account email")
	cmd.Flags().StringVar(&f.password, "password", "", "Account password")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
}

func (f *credentialsFlags) resolvePassword(cmd *cobra.Command) (string, error) {
	if !f.passwordStdin {
		return f.password, nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(input, "\r\n"), nil
}

func newSignupCmd(app *app) *cobra.Command {
	var name string
	var creds credentialsFlags

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := creds.resolvePassword(cmd)
			if err != nil {
				return err
			}

			err = withSpinner(cmd, false, "Creating account...", func(ctx context.Context) error {
				return app.session.Signup(ctx, domain.SignupRequest{Name: name, Email: creds.email, Password: password})
			})
			if err != nil {
				return err
			}

			return writeSignedIn(cmd, app)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Your name")
	_ = cmd.MarkFlagRequired("name")
	creds.bind(cmd)

	return cmd
}

func newLoginCmd(app *app) *cobra.Command {
	var creds credentialsFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the account service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := creds.resolvePassword(cmd)
			if err != nil {
				return err
			}

			err = withSpinner(cmd, false, "Signing in...", func(ctx context.Context) error {
				return app.session.Login(ctx, domain.LoginRequest{Email: creds.email, Password: password})
			})
			if err != nil {
				return err
			}

			return writeSignedIn(cmd, app)
		},
	}

	creds.bind(cmd)

	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.session.Logout(cmd.Context()); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return err
		},
	}
}

func newWhoamiCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}

			identity := app.session.Snapshot().Identity
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "email: %s\n", sanitizeForTerminal(identity.Email))
			if identity.Name != "" {
				_, _ = fmt.Fprintf(out, "name: %s\n", sanitizeForTerminal(identity.Name))
			}
			if identity.BusinessID != "" {
				_, _ = fmt.Fprintf(out, "business: %s\n", sanitizeForTerminal(identity.BusinessID))
			}
			return nil
		},
	}
}

func writeSignedIn(cmd *cobra.Command, app *app) error {
	snapshot := app.session.Snapshot()
	if snapshot.Identity == nil {
		return errNotLoggedIn
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", sanitizeForTerminal(snapshot.Identity.Email))
	return err
}

// sanitizeForTerminal drops control characters from remote strings.
func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
