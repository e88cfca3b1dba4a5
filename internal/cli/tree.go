package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eventtree/internal/models"
)

// TreeOptions holds flags for the tree command.
type TreeOptions struct {
	*RootOptions
	JSON bool
}

// NewTreeCommand creates the command that prints an event's category forest.
func NewTreeCommand(root *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "tree <eventID>",
		Short: "Print the category tree of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || eventID <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, opts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			event, err := a.events.FindByID(ctx, eventID)
			if err != nil {
				return err
			}
			entries, err := a.categories.FullTree(ctx, eventID)
			if err != nil {
				return err
			}
			forest := models.BuildForest(entries)

			out := cmd.OutOrStdout()
			if opts.JSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if forest == nil {
					forest = []*models.Node{}
				}
				return enc.Encode(forest)
			}

			fmt.Fprintf(out, "%s #%d (%d categories)\n", event.Name, event.ID, len(entries))
			return models.RenderTree(out, forest)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print nested JSON instead of an outline")
	return cmd
}
