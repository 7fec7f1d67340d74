package internal

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshModi2005/realityspiral/pkg/config"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Agent.DataDir = t.TempDir()
	cfg.Memory.Backend = "jsonl"
	cfg.GitHub.APIToken = "ghp_test"
	return cfg
}

func TestBootstrap(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimits.GitHubRequestsPerMinute = 30
	app, err := Bootstrap(context.Background(), cfg, BootstrapOptions{})
	require.NoError(t, err)
	defer app.Close()

	_, ok := app.Registry.Resolve("ORCHESTRATE")
	assert.True(t, ok)
	_, ok = app.Registry.Resolve("SEND_EMAIL")
	assert.True(t, ok)
	_, ok = app.Registry.Resolve("GET_KEY_PERMISSIONS")
	assert.True(t, ok)
	assert.Equal(t, "ghp_test", app.Runtime.GetSetting("GITHUB_API_TOKEN"))

	ctx := context.Background()
	require.NoError(t, app.Store.CreateMemory(ctx, &memory.Memory{RoomID: "r", Content: memory.Content{Text: "hi"}}))
	got, err := app.Store.GetMemories(ctx, "r", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBootstrap_RequireLLM(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "no-such-provider"

	_, err := Bootstrap(context.Background(), cfg, BootstrapOptions{RequireLLM: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating provider")

	app, err := Bootstrap(context.Background(), cfg, BootstrapOptions{})
	require.NoError(t, err)
	defer app.Close()
	assert.Nil(t, app.Provider)
}

func TestBootstrap_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.Backend = "cassandra"
	_, err := Bootstrap(context.Background(), cfg, BootstrapOptions{})
	assert.ErrorContains(t, err, "unknown backend")
}

func TestConfigPath(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("config", "", "")
	assert.Equal(t, config.ConfigPath(), ConfigPath(cmd))

	require.NoError(t, cmd.Flags().Set("config", "/tmp/spiral.yaml"))
	assert.Equal(t, "/tmp/spiral.yaml", ConfigPath(cmd))
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "dev", FormatVersion())
	_, goVer := FormatBuildInfo()
	assert.NotEmpty(t, goVer)
}
