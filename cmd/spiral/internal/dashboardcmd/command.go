package dashboardcmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal"
	"github.com/HarshModi2005/realityspiral/pkg/dashboard"
)

func NewDashboardCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"d", "ui"},
		Short:   "Serve the web dashboard and orchestration API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Dashboard.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Dashboard.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := internal.Bootstrap(ctx, cfg, internal.BootstrapOptions{StartEmail: true})
			if err != nil {
				return err
			}
			defer app.Close()

			srv := dashboard.New(app.Runtime, app.Registry, dashboard.Options{
				APIKey:      cfg.Dashboard.APIKey,
				Orchestrate: app.Orchestrate,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "%s Dashboard at http://%s\n", internal.Logo, cfg.Dashboard.Addr())
			return srv.ListenAndServe(ctx, cfg.Dashboard.Addr())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to bind to (overrides dashboard.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides dashboard.port)")

	return cmd
}
