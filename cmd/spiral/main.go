// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal"
	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal/actionscmd"
	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal/coinbasecmd"
	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal/dashboardcmd"
	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal/emailcmd"
	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal/mcp"
	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal/orchestratecmd"
	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal/version"
)

func NewSpiralCommand() *cobra.Command {
	short := fmt.Sprintf("%s spiral - GitHub, Coinbase and e-mail actions driven by a language model", internal.Logo)

	cmd := &cobra.Command{
		Use:           "spiral",
		Short:         short,
		Version:       internal.FormatVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default $SPIRAL_CONFIG or ~/.realityspiral/config.json)")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(
		orchestratecmd.NewOrchestrateCommand(),
		actionscmd.NewActionsCommand(),
		emailcmd.NewEmailCommand(),
		coinbasecmd.NewCoinbaseCommand(),
		dashboardcmd.NewDashboardCommand(),
		mcp.NewMCPCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewSpiralCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
