package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"eventtree/internal/database"
)

// NewSeedCommand creates the command that loads the sample event.
func NewSeedCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a sample event when the database is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := database.Seed(ctx, a.events, a.categories); err != nil {
				return fmt.Errorf("seed database: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
}
