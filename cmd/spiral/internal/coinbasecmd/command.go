package coinbasecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal"
	"github.com/HarshModi2005/realityspiral/pkg/plugins/coinbase"
	"github.com/HarshModi2005/realityspiral/pkg/ratelimit"
)

func NewCoinbaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "coinbase",
		Aliases: []string{"cb"},
		Short:   "Coinbase Advanced Trade helpers",
	}
	cmd.AddCommand(newPermissionsCommand())
	return cmd
}

func newPermissionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "Show what the configured API key is allowed to do",
		Args:  cobra.NoArgs,
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

			var opts coinbase.Options
			if n := cfg.RateLimits.CoinbaseRequestsPerSecond; n > 0 {
				opts.Limiter = ratelimit.NewLimiter(ratelimit.PerSecond(n))
			}
			client, err := opts.ClientFor(app.Runtime)
			if err != nil {
				return err
			}
			perms, err := client.GetAPIKeyPermissions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), coinbase.FormatPermissions(perms))
			return nil
		},
	}
}
