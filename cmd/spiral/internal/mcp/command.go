package mcp

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/mcpserver"
)

func NewMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve every registered action as an MCP tool over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol
			logger.SetOutput(cmd.ErrOrStderr())
			cfg, err := internal.LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := internal.Bootstrap(ctx, cfg, internal.BootstrapOptions{StartEmail: true})
			if err != nil {
				return err
			}
			defer app.Close()

			return mcpserver.Serve(ctx, mcpserver.New(app.Runtime, app.Registry, internal.GetVersion()))
		},
	}
}
