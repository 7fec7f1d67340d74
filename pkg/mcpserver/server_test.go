package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/actions/actionstest"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

func connect(t *testing.T, rt actions.Runtime, registry *actions.Registry) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := New(rt, registry, "test")
	serverTr, clientTr := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func fixture(t *testing.T) (*actionstest.Runtime, *actionstest.MemoryStore, *actions.Registry, *actionstest.Recorder) {
	t.Helper()
	store := &actionstest.MemoryStore{}
	rt := &actionstest.Runtime{ID: "agent-1", Name: "Spiral", Store: store}
	rec := &actionstest.Recorder{}

	issue := &actionstest.Stub{ActionName: "CREATE_ISSUE", Aliases: []string{"OPEN_ISSUE"}, Desc: "Creates an issue", Recorder: rec}
	issue.HandleFn = func(_ context.Context, req *memory.Memory) (*actions.Result, error) {
		return &actions.Result{Text: "Created issue #7 successfully!", Data: map[string]any{"number": 7}}, nil
	}
	broken := &actionstest.Stub{ActionName: "MERGE_PULL_REQUEST", Desc: "Merges", Recorder: rec}
	broken.HandleFn = func(context.Context, *memory.Memory) (*actions.Result, error) {
		return nil, errors.New("merge conflict")
	}
	unconfigured := &actionstest.Stub{ActionName: "GET_KEY_PERMISSIONS", Desc: "Coinbase", Recorder: rec}
	unconfigured.ValidateFn = func(context.Context, actions.Runtime) bool { return false }
	shadow := &actionstest.Stub{ActionName: "CREATE_ISSUE", Desc: "shadowed"}

	registry := actions.NewRegistry()
	require.NoError(t, registry.Register(actions.Plugin{Name: "github", Actions: []actions.Action{issue, broken}}))
	require.NoError(t, registry.Register(actions.Plugin{Name: "coinbase", Actions: []actions.Action{unconfigured}}))
	require.NoError(t, registry.Register(actions.Plugin{Name: "other", Actions: []actions.Action{shadow}}))
	return rt, store, registry, rec
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestListTools(t *testing.T) {
	rt, _, registry, _ := fixture(t)
	cs := connect(t, rt, registry)

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	byName := make(map[string]*mcp.Tool)
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
	}
	require.Len(t, byName, 3)
	assert.Equal(t, "Creates an issue (also: OPEN_ISSUE)", byName["CREATE_ISSUE"].Description)
	assert.NotNil(t, byName["CREATE_ISSUE"].InputSchema)
}

func TestCallTool(t *testing.T) {
	rt, store, registry, rec := fixture(t)
	cs := connect(t, rt, registry)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "CREATE_ISSUE",
		Arguments: map[string]any{"text": "open an issue about flaky tests", "room_id": "room-1"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Created issue #7 successfully!", textOf(t, res))

	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "room-1", records[0].RoomID)
	assert.Equal(t, "mcp", records[0].Content.Source)
	assert.Equal(t, "CREATE_ISSUE", records[0].Content.Action)

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "open an issue about flaky tests", calls[0].Request.Content.Text)
	assert.Nil(t, calls[0].State)
}

func TestCallTool_NewRoom(t *testing.T) {
	rt, store, registry, _ := fixture(t)
	cs := connect(t, rt, registry)

	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "CREATE_ISSUE",
		Arguments: map[string]any{"text": "hi"},
	})
	require.NoError(t, err)
	require.Len(t, store.Records(), 1)
	assert.NotEmpty(t, store.Records()[0].RoomID)
}

func TestCallTool_Errors(t *testing.T) {
	tests := []struct {
		name string
		tool string
		text string
		want string
	}{
		{"handler error", "MERGE_PULL_REQUEST", "merge #3", "merge conflict"},
		{"not configured", "GET_KEY_PERMISSIONS", "permissions?", "GET_KEY_PERMISSIONS is not configured"},
		{"empty text", "CREATE_ISSUE", " ", "text is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, _, registry, _ := fixture(t)
			cs := connect(t, rt, registry)

			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      tt.tool,
				Arguments: map[string]any{"text": tt.text},
			})
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, textOf(t, res), tt.want)
		})
	}
}
