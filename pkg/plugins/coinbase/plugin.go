package coinbase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/ratelimit"
)

type Options struct {
	BaseURL   string
	Limiter   *ratelimit.Limiter
	Transport http.RoundTripper
}

// ClientFor builds a client from the runtime's COINBASE_* settings.
func (o Options) ClientFor(rt actions.Runtime) (*Client, error) {
	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = rt.GetSetting("COINBASE_BASE_URL")
	}
	return NewClient(rt.GetSetting("COINBASE_API_KEY"), rt.GetSetting("COINBASE_API_SECRET"),
		WithTransport(o.Transport),
		WithLimiter(o.Limiter),
		WithBaseURL(baseURL),
	)
}

func Plugin(opts Options) actions.Plugin {
	return actions.Plugin{
		Name:        "coinbaseKeyPermissions",
		Description: "Inspects the permissions of the configured Coinbase API key",
		Actions:     []actions.Action{&KeyPermissionsAction{opts: opts}},
	}
}

type KeyPermissionsAction struct {
	opts Options
}

func (*KeyPermissionsAction) Name() string { return "GET_KEY_PERMISSIONS" }

func (*KeyPermissionsAction) Similes() []string {
	return []string{"COINBASE_KEY_PERMISSIONS", "CHECK_API_KEY_PERMISSIONS"}
}

func (*KeyPermissionsAction) Description() string {
	return "Retrieves the view, trade and transfer permissions of the Coinbase API key"
}

func (*KeyPermissionsAction) Validate(_ context.Context, rt actions.Runtime) bool {
	return rt.GetSetting("COINBASE_API_KEY") != "" && rt.GetSetting("COINBASE_API_SECRET") != ""
}

func (a *KeyPermissionsAction) Handle(ctx context.Context, rt actions.Runtime, _ *memory.Memory, _ *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	const errText = "Error retrieving Coinbase API key permissions. Please try again."

	client, err := a.opts.ClientFor(rt)
	if err == nil {
		var perms *KeyPermissions
		if perms, err = client.GetAPIKeyPermissions(ctx); err == nil {
			text := FormatPermissions(perms)
			logger.InfoCF("coinbase", "Retrieved API key permissions", map[string]any{
				"portfolio_uuid": perms.PortfolioUUID,
			})
			actions.Emit(cb, actions.Content{Text: text})
			return &actions.Result{Text: text, Data: map[string]any{
				"can_view":       perms.CanView,
				"can_trade":      perms.CanTrade,
				"can_transfer":   perms.CanTransfer,
				"portfolio_uuid": perms.PortfolioUUID,
				"portfolio_type": perms.PortfolioType,
			}}, nil
		}
	}

	logger.ErrorCF("coinbase", errText, map[string]any{"error": err.Error()})
	actions.Emit(cb, actions.Content{Text: errText})
	return nil, fmt.Errorf("%s: %w", errText, err)
}

func FormatPermissions(p *KeyPermissions) string {
	return fmt.Sprintf("API key permissions: can view: %t, can trade: %t, can transfer: %t, portfolio: %s (%s)",
		p.CanView, p.CanTrade, p.CanTransfer, p.PortfolioUUID, p.PortfolioType)
}
