package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartserve/internal/catalog"
	"smartserve/internal/clock"
	"smartserve/internal/config"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var withIncidents bool

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Load the demo menu (and optionally the demo incidents) into the store",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			clk := clock.Wall{}
			st, err := openStore(cmd.Context(), cfg, clk)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer st.Close()

			if err := catalog.Seed(cmd.Context(), st, clk.Now(), withIncidents); err != nil {
				return err
			}

			menu, err := st.ListMenu(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d menu items into %s\n", len(menu), cfg.Database.Driver)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withIncidents, "incidents", true, "also raise the demo incidents")

	return cmd
}
