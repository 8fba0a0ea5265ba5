package cmd

import (
	"context"
	"fmt"

	statusadapter "github.com/bnema/squarelink-cli/internal/adapters/render/status"
	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newLocationsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "locations",
		Aliases: []string{"location"},
		Short:   "List and select Square locations",
	}

	cmd.AddCommand(newLocationsListCmd(app), newLocationsSelectCmd(app))

	return cmd
}

func newLocationsListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the locations of the connected Square account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadLocations(cmd, app, asJSON); err != nil {
				return err
			}

			return writeView(cmd, app, statusadapter.FromSnapshot(app.session.Snapshot()), statusadapter.SectionLocations, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func newLocationsSelectCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select <location-id>",
		Short: "Use a Square location for payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadLocations(cmd, app, false); err != nil {
				return err
			}

			location, ok := domain.FindLocation(app.session.Snapshot().Locations, args[0])
			if !ok {
				return fmt.Errorf("location %q not found: run squarelink locations list", args[0])
			}

			err := withSpinner(cmd, false, "Selecting location...", func(ctx context.Context) error {
				return app.session.SelectLocation(ctx, location)
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Selected %s (%s)\n", sanitizeForTerminal(location.DisplayName()), location.ID)
			return nil
		},
	}
}

func loadLocations(cmd *cobra.Command, app *app, quiet bool) error {
	if err := app.requireSession(cmd.Context()); err != nil {
		return err
	}
	if !app.session.Snapshot().Connection.Active() {
		return fmt.Errorf("%w: run squarelink connect", domain.ErrNoConnection)
	}

	return withSpinner(cmd, quiet, "Fetching locations...", func(ctx context.Context) error {
		_, err := app.session.RefreshLocations(ctx)
		return err
	})
}
