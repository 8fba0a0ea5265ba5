package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/squarelink-cli/internal/application"
	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newDisconnectCmd(app *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Revoke the Square connection of your business",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}

			err := app.session.Disconnect(cmd.Context(), promptConfirmer(cmd, yes))
			if errors.Is(err, domain.ErrDisconnectDeclined) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Disconnect cancelled.")
				return err
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Square account disconnected.")
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// promptConfirmer asks on stderr and reads y/yes from stdin.
func promptConfirmer(cmd *cobra.Command, assumeYes bool) application.Confirmer {
	return application.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		if assumeYes {
			return true, nil
		}

		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", prompt)

		reader := bufio.NewReader(cmd.InOrStdin())
		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	})
}
