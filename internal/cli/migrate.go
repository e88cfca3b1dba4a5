package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"eventtree/internal/database"
)

// NewMigrateCommand creates the command that applies pending migrations.
func NewMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := database.Version(ctx, a.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
}
