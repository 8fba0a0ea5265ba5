package cmd

import (
	"context"

	statusadapter "github.com/bnema/squarelink-cli/internal/adapters/render/status"
	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newBusinessCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "business",
		Short: "Manage the business linked to your account",
	}

	cmd.AddCommand(newBusinessUpdateCmd(app))

	return cmd
}

func newBusinessUpdateCmd(app *app) *cobra.Command {
	var update domain.ConnectionUpdate

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the business name, Square location or currency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}

			err := withSpinner(cmd, false, "Updating business...", func(ctx context.Context) error {
				return app.session.UpdateConnection(ctx, update)
			})
			if err != nil {
				return err
			}

			return writeView(cmd, app, statusadapter.FromSnapshot(app.session.Snapshot()), statusadapter.SectionConnection, false)
		},
	}

	cmd.Flags().StringVar(&update.Name, "name", "", "Business name")
	cmd.Flags().StringVar(&update.LocationID, "location", "", "Square location id")
	cmd.Flags().StringVar(&update.Currency, "currency", "", "ISO 4217 currency code, e.g. USD")
	cmd.MarkFlagsOneRequired("name", "location", "currency")

	return cmd
}
