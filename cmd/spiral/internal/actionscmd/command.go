package actionscmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal"
	"github.com/HarshModi2005/realityspiral/pkg/actions"
)

func NewActionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "actions",
		Aliases: []string{"ls"},
		Short:   "List registered plugins, actions and whether they are configured",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig(cmd)
			if err != nil {
				return err
			}
			app, err := internal.Bootstrap(cmd.Context(), cfg, internal.BootstrapOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			return printActions(cmd.Context(), cmd.OutOrStdout(), app.Registry, app.Runtime)
		},
	}

	return cmd
}

func printActions(ctx context.Context, w io.Writer, registry *actions.Registry, rt actions.Runtime) error {
	valid := make(map[string]bool)
	for _, a := range registry.Validated(ctx, rt) {
		valid[a.Name()] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLUGIN\tACTION\tREADY\tSIMILES")
	for _, s := range registry.Summaries() {
		ready := "no"
		if valid[s.Name] {
			ready = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Plugin, s.Name, ready, strings.Join(s.Similes, ", "))
	}
	return tw.Flush()
}
