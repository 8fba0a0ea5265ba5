package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	statusadapter "github.com/bnema/squarelink-cli/internal/adapters/render/status"
	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/spf13/cobra"
)

type statusJSON struct {
	State              string            `json:"state"`
	Email              string            `json:"email,omitempty"`
	Connection         *connectionJSON   `json:"connection,omitempty"`
	SelectedLocationID string            `json:"selected_location_id,omitempty"`
	Locations          []locationJSON    `json:"locations"`
	Plans              []planJSON        `json:"plans"`
	Errors             map[string]string `json:"errors,omitempty"`
	CapturedAt         *time.Time        `json:"captured_at,omitempty"`
}

type connectionJSON struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	MerchantID string `json:"merchant_id,omitempty"`
	Currency   string `json:"currency,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

type locationJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
	Address  string `json:"address,omitempty"`
}

type planJSON struct {
	ObjectID   string          `json:"object_id"`
	Name       string          `json:"name"`
	Status     string          `json:"status,omitempty"`
	Variations []variationJSON `json:"variations"`
}

type variationJSON struct {
	Name          string  `json:"name"`
	Cadence       string  `json:"cadence"`
	Type          string  `json:"type,omitempty"`
	Amount        int64   `json:"amount"`
	Credit        int64   `json:"credit,omitempty"`
	TaxPercentage float64 `json:"tax_percentage,omitempty"`
}

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool
	var cached bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session, Square connection, locations and plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cached {
				projection, err := app.session.CachedProjection(cmd.Context())
				if err != nil {
					if errors.Is(err, domain.ErrProjectionNotFound) {
						return fmt.Errorf("%w: run squarelink status first", err)
					}
					return err
				}
				return writeView(cmd, app, statusadapter.FromProjection(projection), statusadapter.SectionAll, asJSON)
			}

			err := withSpinner(cmd, asJSON, "Fetching connection...", func(ctx context.Context) error {
				return loadFullView(ctx, app)
			})
			if err != nil && !errors.Is(err, errNotLoggedIn) {
				return err
			}

			return writeView(cmd, app, statusadapter.FromSnapshot(app.session.Snapshot()), statusadapter.SectionAll, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&cached, "cached", false, "Show the last saved view without contacting the service")

	return cmd
}

// loadFullView boots the session, then loads locations and plans. Scoped
// failures stay on the snapshot and are shown with the view.
func loadFullView(ctx context.Context, app *app) error {
	if err := app.requireSession(ctx); err != nil {
		return err
	}

	if _, err := app.session.RefreshLocations(ctx); err != nil {
		app.logger.Debug().Err(err).Msg("refresh locations for status")
	}
	if err := app.session.RefreshSubscriptions(ctx); err != nil {
		app.logger.Debug().Err(err).Msg("refresh subscriptions for status")
	}
	return nil
}

func writeView(cmd *cobra.Command, app *app, view statusadapter.View, sections statusadapter.Section, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(toStatusJSON(view))
	}

	rendered, err := app.statusRenderer(view, statusadapter.RenderOptions{
		Now:        app.now(),
		StaleAfter: cacheStaleAfter,
		Sections:   sections,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func toStatusJSON(view statusadapter.View) statusJSON {
	out := statusJSON{
		State:              string(view.State),
		Email:              view.Email,
		SelectedLocationID: view.SelectedLocationID,
		Locations:          make([]locationJSON, 0, len(view.Locations)),
		Plans:              make([]planJSON, 0),
	}
	if out.State == "" {
		out.State = string(domain.SessionUnauthenticated)
	}
	if !view.CapturedAt.IsZero() {
		capturedAt := view.CapturedAt.UTC()
		out.CapturedAt = &capturedAt
	}

	if c := view.Connection; c != nil {
		out.Connection = &connectionJSON{
			ID:         c.ID,
			Name:       c.Name,
			Active:     c.Active(),
			MerchantID: c.MerchantID,
			Currency:   c.Currency,
			LocationID: c.ProductionLocationID,
			Status:     c.Status,
		}
	}

	for _, location := range view.Locations {
		entry := locationJSON{ID: location.ID, Name: location.DisplayName(), Currency: location.Currency}
		if location.Address != nil {
			entry.Address = location.FormattedAddress()
		}
		out.Locations = append(out.Locations, entry)
	}

	if data := view.Subscriptions; data != nil {
		for _, plan := range data.Plans {
			entry := planJSON{ObjectID: plan.ObjectID, Name: plan.Name, Status: plan.Status, Variations: make([]variationJSON, 0)}
			for _, variation := range data.VariationsForPlan(plan) {
				entry.Variations = append(entry.Variations, variationJSON{
					Name:          variation.Name,
					Cadence:       variation.Cadence,
					Type:          variation.Type,
					Amount:        variation.Amount,
					Credit:        variation.Credit,
					TaxPercentage: variation.TaxPercentage,
				})
			}
			out.Plans = append(out.Plans, entry)
		}
	}

	errs := map[string]string{}
	for key, message := range map[string]string{
		"auth":          view.AuthError,
		"business":      view.BusinessError,
		"subscriptions": view.SubscriptionError,
	} {
		if message != "" {
			errs[key] = message
		}
	}
	if len(errs) > 0 {
		out.Errors = errs
	}

	return out
}
