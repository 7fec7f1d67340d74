package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/actions/actionstest"
	"github.com/HarshModi2005/realityspiral/pkg/config"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

func newTestRuntime(t *testing.T) (*Runtime, *actionstest.MemoryStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Agent.ID = "agent-1"
	cfg.Agent.Name = "Spiral"
	cfg.Agent.RecentMessages = 2
	cfg.LLM.Model = ""
	cfg.GitHub.APIToken = "ghp_configured"

	reg := actions.NewRegistry()
	require.NoError(t, reg.Register(actions.Plugin{
		Name: "githubCreateIssue",
		Actions: []actions.Action{&actionstest.Stub{
			ActionName: "CREATE_ISSUE",
			Aliases:    []string{"OPEN_ISSUE"},
			Desc:       "Creates a GitHub issue",
		}},
	}))

	store := &actionstest.MemoryStore{}
	return NewRuntime(cfg, store, &actionstest.Provider{}, reg), store
}

func TestNewRuntime_Identity(t *testing.T) {
	rt, store := newTestRuntime(t)
	assert.Equal(t, "agent-1", rt.AgentID())
	assert.Equal(t, "Spiral", rt.AgentName())
	assert.Equal(t, "test-model", rt.Model(), "falls back to the provider default")
	assert.Same(t, store, rt.Memory())
	assert.NotNil(t, rt.Provider())
	assert.Len(t, rt.Registry().Actions(), 1)
	assert.Equal(t, "ghp_configured", rt.GetSetting("GITHUB_API_TOKEN"))
}

func TestComposeState(t *testing.T) {
	rt, store := newTestRuntime(t)
	ctx := context.Background()

	for _, m := range []memory.Memory{
		{UserID: "u1", RoomID: "room", Content: memory.Content{Text: "first"}},
		{UserID: "u1", RoomID: "room", Content: memory.Content{Text: "open an issue"}},
		{UserID: "agent-1", RoomID: "room", Content: memory.Content{Text: "Created issue #4", Action: "CREATE_ISSUE"}},
		{UserID: "u2", RoomID: "other", Content: memory.Content{Text: "elsewhere"}},
	} {
		m := m
		require.NoError(t, store.CreateMemory(ctx, &m))
	}

	st, err := rt.ComposeState(ctx, &memory.Memory{UserID: "u1", RoomID: "room", Content: memory.Content{Text: "now merge it"}})
	require.NoError(t, err)

	assert.Equal(t, "agent-1", st.AgentID)
	assert.Equal(t, "u1", st.UserID)
	assert.Equal(t, "room", st.RoomID)
	assert.Equal(t, "now merge it", st.Get("message"))
	assert.Equal(t, "CREATE_ISSUE", st.Get("actionNames"))
	assert.Equal(t, "- CREATE_ISSUE (also: OPEN_ISSUE): Creates a GitHub issue", st.Get("actions"))
	assert.Equal(t, "user: open an issue\nSpiral: Created issue #4 (CREATE_ISSUE)", st.Get("recentMessages"))
}

func TestUpdateRecentMessageState(t *testing.T) {
	rt, store := newTestRuntime(t)
	ctx := context.Background()

	st, err := rt.ComposeState(ctx, &memory.Memory{RoomID: "r"})
	require.NoError(t, err)
	assert.Equal(t, "", st.Get("recentMessages"))

	require.NoError(t, store.CreateMemory(ctx, &memory.Memory{UserID: "u", RoomID: "r", Content: memory.Content{Text: "hi"}}))
	require.NoError(t, rt.UpdateRecentMessageState(ctx, st))
	assert.Equal(t, "user: hi", st.Get("recentMessages"))

	assert.NoError(t, rt.UpdateRecentMessageState(ctx, nil))
}

type failingStore struct{ memory.Store }

func (failingStore) GetMemories(context.Context, string, int) ([]memory.Memory, error) {
	return nil, assert.AnError
}

func TestComposeState_StoreError(t *testing.T) {
	rt := NewRuntime(config.DefaultConfig(), failingStore{}, nil, nil)
	_, err := rt.ComposeState(context.Background(), &memory.Memory{RoomID: "r"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GitHub.APIToken = "ghp_x"
	cfg.Coinbase.APIKey = "organizations/o/apiKeys/k"
	cfg.Email.Outgoing.Service = "smtp"
	cfg.Email.Outgoing.Port = 465
	cfg.Email.Outgoing.Secure = true

	s := SettingsFromConfig(cfg)
	assert.Equal(t, "ghp_x", s.Get("GITHUB_API_TOKEN"))
	assert.Equal(t, "organizations/o/apiKeys/k", s.Get("COINBASE_API_KEY"))
	assert.Equal(t, "smtp", s.Get("EMAIL_OUTGOING_SERVICE"))
	assert.Equal(t, "465", s.Get("EMAIL_OUTGOING_PORT"))
	assert.Equal(t, "true", s.Get("EMAIL_SECURE"))
}

func TestSettings_EnvironmentFallback(t *testing.T) {
	t.Setenv("COINBASE_API_SECRET", "from-env")
	t.Setenv("GITHUB_API_TOKEN", "ignored")

	s := Settings{"GITHUB_API_TOKEN": "from-config"}
	assert.Equal(t, "from-config", s.Get("GITHUB_API_TOKEN"))
	assert.Equal(t, "from-env", s.Get("COINBASE_API_SECRET"))
	assert.Equal(t, "", s.Get("SPIRAL_TEST_UNSET_KEY"))
}
