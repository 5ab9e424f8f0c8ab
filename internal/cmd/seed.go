package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hrm8/assistant/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo regions, companies, consultants and jobs into the business store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "seed")
		defer span.End()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openBusinessStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := seedDemo(ctx, st); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Demo fixtures loaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seedDemo(ctx context.Context, st businessStore) error {
	fx := store.DemoFixtures()
	if err := st.Load(ctx, fx); err != nil {
		return fmt.Errorf("loading demo fixtures: %w", err)
	}
	log.Info().
		Int("regions", len(fx.Regions)).
		Int("companies", len(fx.Companies)).
		Int("consultants", len(fx.Consultants)).
		Msg("demo_fixtures_loaded")
	return nil
}
