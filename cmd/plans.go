package cmd

import (
	"context"
	"fmt"

	statusadapter "github.com/bnema/squarelink-cli/internal/adapters/render/status"
	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newPlansCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plans",
		Aliases: []string{"plan"},
		Short:   "Manage subscription plans",
	}

	cmd.AddCommand(newPlansListCmd(app), newPlansCreateCmd(app), newPlanVariationCmd(app))

	return cmd
}

func newPlansListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscription plans and their variations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}

			err := withSpinner(cmd, asJSON, "Fetching plans...", app.session.RefreshSubscriptions)
			if err != nil {
				return err
			}

			return writeView(cmd, app, statusadapter.FromSnapshot(app.session.Snapshot()), statusadapter.SectionPlans, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func newPlansCreateCmd(app *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a subscription plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}

			err := withSpinner(cmd, false, "Creating plan...", func(ctx context.Context) error {
				return app.session.CreatePlan(ctx, name)
			})
			if err != nil {
				return err
			}

			return writeView(cmd, app, statusadapter.FromSnapshot(app.session.Snapshot()), statusadapter.SectionPlans, false)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Plan name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPlanVariationCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "variation",
		Aliases: []string{"variations"},
		Short:   "Manage plan variations",
	}

	cmd.AddCommand(newPlanVariationCreateCmd(app))

	return cmd
}

func newPlanVariationCreateCmd(app *app) *cobra.Command {
	var variation domain.NewPlanVariation

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a variation of a subscription plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}

			err := withSpinner(cmd, false, "Creating plan variation...", func(ctx context.Context) error {
				return app.session.CreatePlanVariation(ctx, variation)
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created variation %s for plan %s\n", sanitizeForTerminal(variation.Name), variation.PlanID)
			return writeView(cmd, app, statusadapter.FromSnapshot(app.session.Snapshot()), statusadapter.SectionPlans, false)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&variation.PlanID, "plan", "", "Plan object id")
	flags.StringVar(&variation.Name, "name", "", "Variation name")
	flags.StringVar(&variation.Cadence, "cadence", "MONTHLY", "Billing cadence, e.g. WEEKLY, MONTHLY, ANNUAL")
	flags.Int64Var(&variation.Amount, "amount", 0, "Price in minor currency units")
	flags.StringVar(&variation.Type, "type", "STATIC", "Pricing type (STATIC|RELATIVE)")
	flags.Int64Var(&variation.Credit, "credit", 0, "Credit granted per cycle, in minor units")
	flags.Int64Var(&variation.CreditChargeAmount, "credit-charge-amount", 0, "Amount charged for the credit, in minor units")
	flags.Int64Var(&variation.GiftCredit, "gift-credit", 0, "Gift credit, in minor units")
	flags.Int64Var(&variation.GiftCreditChargeAmount, "gift-credit-charge-amount", 0, "Amount charged for the gift credit, in minor units")
	flags.Float64Var(&variation.TaxPercentage, "tax", 0, "Tax percentage")
	flags.StringVar(&variation.Description, "description", "", "Variation description")
	flags.StringVar(&variation.BusinessID, "business", "", "Business id (defaults to your business)")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
