package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Renzios/sharerapy-harness/internal/app"
)

func newLookupsCommand() *cobra.Command {
	var countryID int

	cmd := &cobra.Command{
		Use:   "lookups",
		Short: "Print reference lists",
	}

	lookup := func(use, short string, fn func(ctx context.Context, a *app.App) (interface{}, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, fn)
			},
		}
	}

	clinics := lookup("clinics", "List clinics, optionally for one country", func(ctx context.Context, a *app.App) (interface{}, error) {
		return a.Lookups.Clinics(ctx, countryID)
	})
	clinics.Flags().IntVar(&countryID, "country-id", 0, "restrict to one country")

	cmd.AddCommand(
		lookup("countries", "List countries", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Lookups.Countries(ctx)
		}),
		clinics,
		lookup("languages", "List languages", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Lookups.Languages(ctx)
		}),
		lookup("types", "List report types", func(ctx context.Context, a *app.App) (interface{}, error) {
			return a.Lookups.ReportTypes(ctx)
		}),
	)
	return cmd
}
