// Package internal holds the bootstrap shared by every spiral subcommand.
package internal

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/agent"
	"github.com/HarshModi2005/realityspiral/pkg/audit"
	"github.com/HarshModi2005/realityspiral/pkg/config"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/orchestrate"
	"github.com/HarshModi2005/realityspiral/pkg/plugins/coinbase"
	"github.com/HarshModi2005/realityspiral/pkg/plugins/email"
	"github.com/HarshModi2005/realityspiral/pkg/plugins/github"
	"github.com/HarshModi2005/realityspiral/pkg/providers"
	"github.com/HarshModi2005/realityspiral/pkg/ratelimit"
	"github.com/HarshModi2005/realityspiral/pkg/tracing"
)

const Logo = "🌀"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return buildTime, goVer
}

func GetVersion() string {
	return version
}

// ConfigPath reads the persistent --config flag, falling back to
// config.ConfigPath.
func ConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return config.ConfigPath()
}

// LoadConfig loads the configuration and applies the log settings.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(ConfigPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logger.SetLevel(logger.DEBUG)
	} else if cfg.Log.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	logger.ConfigureRedaction(cfg.Log.Redaction)
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return nil, fmt.Errorf("enabling file logging: %w", err)
		}
	}
	return cfg, nil
}

// App is a fully wired agent: memory, language model, every plugin and the
// runtime they share.
type App struct {
	Config      *config.Config
	Store       memory.Store
	Provider    providers.LLMProvider
	Registry    *actions.Registry
	Runtime     *agent.Runtime
	Email       *email.Client
	Audit       *audit.Logger
	Orchestrate orchestrate.Options
}

type BootstrapOptions struct {
	// RequireLLM fails the bootstrap when no provider can be built.
	// Otherwise the app runs without one and planning calls fail.
	RequireLLM bool
	// StartEmail initializes the e-mail client, connecting to IMAP when
	// incoming mail is configured.
	StartEmail bool
}

// Bootstrap wires config, tracing, audit, memory, the provider and the
// plugins in that order.
func Bootstrap(ctx context.Context, cfg *config.Config, opts BootstrapOptions) (*App, error) {
	if err := tracing.Init(ctx, cfg.Tracing); err != nil {
		logger.WarnCF("spiral", "Tracing disabled", map[string]any{"error": err.Error()})
	}

	app := &App{Config: cfg}
	var err error
	if app.Audit, err = audit.FromConfig(cfg.Audit, cfg.DataPath()); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	if app.Store, err = memory.Open(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}

	app.Provider, err = providers.CreateProvider(cfg.LLM)
	if err != nil {
		if opts.RequireLLM {
			app.Close()
			return nil, fmt.Errorf("creating provider: %w", err)
		}
		logger.WarnCF("spiral", "Running without a language model", map[string]any{"error": err.Error()})
		app.Provider = nil
	}

	settings := agent.SettingsFromConfig(cfg)
	app.Email = email.NewClient(settings)
	if opts.StartEmail {
		if err := app.Email.Initialize(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Orchestrate = orchestrate.OptionsFromConfig(cfg)
	app.Orchestrate.Audit = app.Audit

	app.Registry, err = BuildRegistry(cfg, app.Email, app.Orchestrate)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Runtime = agent.NewRuntime(cfg, app.Store, app.Provider, app.Registry)

	logger.InfoCF("spiral", "Agent initialized", map[string]any{
		"plugins": len(app.Registry.Plugins()),
		"actions": len(app.Registry.Actions()),
		"model":   app.Runtime.Model(),
	})
	return app, nil
}

// BuildRegistry registers the GitHub, Coinbase and e-mail plugins followed
// by the orchestrator, which resolves plan steps against the same registry.
func BuildRegistry(cfg *config.Config, mail *email.Client, orch orchestrate.Options) (*actions.Registry, error) {
	cfg.RLock()
	ghPerMinute := cfg.RateLimits.GitHubRequestsPerMinute
	cbPerSecond := cfg.RateLimits.CoinbaseRequestsPerSecond
	cfg.RUnlock()

	ghOpts := github.Options{}
	if ghPerMinute > 0 {
		ghOpts.Limiter = ratelimit.NewLimiter(ratelimit.PerMinute(ghPerMinute))
	}
	cbOpts := coinbase.Options{}
	if cbPerSecond > 0 {
		cbOpts.Limiter = ratelimit.NewLimiter(ratelimit.PerSecond(cbPerSecond))
	}

	registry := actions.NewRegistry()
	plugins := github.Plugins(ghOpts)
	plugins = append(plugins, coinbase.Plugin(cbOpts), email.Plugin(mail))
	for _, p := range plugins {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("registering %s: %w", p.Name, err)
		}
	}
	if err := registry.Register(orchestrate.Plugin(registry, orch)); err != nil {
		return nil, fmt.Errorf("registering orchestrator: %w", err)
	}
	return registry, nil
}

func (a *App) Close() {
	if a.Email != nil {
		a.Email.Stop()
	}
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	errs = append(errs, tracing.Shutdown(context.Background()))
	if err := errors.Join(errs...); err != nil {
		logger.WarnCF("spiral", "Shutdown incomplete", map[string]any{"error": err.Error()})
	}
}
