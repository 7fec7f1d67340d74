package actions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/actions/actionstest"
)

func stub(name string, similes ...string) *actionstest.Stub {
	return &actionstest.Stub{ActionName: name, Aliases: similes, Desc: name + " description"}
}

func TestRegistry_ResolveByNameAndSimile(t *testing.T) {
	r := actions.NewRegistry()
	issue := stub("CREATE_ISSUE", "OPEN_ISSUE", "NEW_ISSUE")
	require.NoError(t, r.Register(actions.Plugin{Name: "githubCreateIssue", Actions: []actions.Action{issue}}))

	got, ok := r.Resolve("CREATE_ISSUE")
	require.True(t, ok)
	assert.Same(t, issue, got)

	got, ok = r.Resolve("NEW_ISSUE")
	require.True(t, ok)
	assert.Same(t, issue, got)

	_, ok = r.Resolve("create_issue")
	assert.False(t, ok, "matching is exact")

	_, ok = r.Resolve("DELETE_REPO")
	assert.False(t, ok)
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	r := actions.NewRegistry()
	first := stub("COMMENT_ON_PULL_REQUEST", "COMMENT")
	second := stub("COMMENT_ON_ISSUE", "COMMENT")
	require.NoError(t, r.Register(actions.Plugin{Name: "a", Actions: []actions.Action{first}}))
	require.NoError(t, r.Register(actions.Plugin{Name: "b", Actions: []actions.Action{second}}))

	for i := 0; i < 10; i++ {
		got, ok := r.Resolve("COMMENT")
		require.True(t, ok)
		assert.Same(t, first, got)
	}

	// a primary name in a later plugin does not beat an earlier simile
	shadow := stub("COMMENT")
	require.NoError(t, r.Register(actions.Plugin{Name: "c", Actions: []actions.Action{shadow}}))
	got, _ := r.Resolve("COMMENT")
	assert.Same(t, first, got)
}

func TestRegistry_DeclarationOrderWithinPlugin(t *testing.T) {
	r := actions.NewRegistry()
	a := stub("REACT_TO_PR", "REACT")
	b := stub("REACT_TO_ISSUE", "REACT")
	require.NoError(t, r.Register(actions.Plugin{Name: "p", Actions: []actions.Action{a, b}}))

	got, _ := r.Resolve("REACT")
	assert.Same(t, a, got)
}

func TestRegistry_RegisterRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name   string
		plugin actions.Plugin
		want   error
	}{
		{"empty plugin name", actions.Plugin{Actions: []actions.Action{stub("X")}}, actions.ErrInvalidPlugin},
		{"nil action", actions.Plugin{Name: "p", Actions: []actions.Action{nil}}, actions.ErrInvalidAction},
		{"empty action name", actions.Plugin{Name: "p", Actions: []actions.Action{stub("")}}, actions.ErrInvalidAction},
		{"duplicate action", actions.Plugin{Name: "p", Actions: []actions.Action{stub("X"), stub("X")}}, actions.ErrInvalidAction},
		{"empty simile", actions.Plugin{Name: "p", Actions: []actions.Action{stub("X", "")}}, actions.ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := actions.NewRegistry()
			assert.ErrorIs(t, r.Register(tt.plugin), tt.want)
			assert.Empty(t, r.Plugins())
		})
	}
}

func TestRegistry_DuplicatePluginName(t *testing.T) {
	r := actions.NewRegistry()
	require.NoError(t, r.Register(actions.Plugin{Name: "email", Actions: []actions.Action{stub("SEND_EMAIL")}}))
	assert.ErrorIs(t, r.Register(actions.Plugin{Name: "email"}), actions.ErrInvalidPlugin)
}

func TestRegistry_RegisterCopiesActions(t *testing.T) {
	r := actions.NewRegistry()
	list := []actions.Action{stub("A")}
	require.NoError(t, r.Register(actions.Plugin{Name: "p", Actions: list}))
	list[0] = stub("B")

	_, ok := r.Resolve("A")
	assert.True(t, ok)
	_, ok = r.Resolve("B")
	assert.False(t, ok)
}

func TestRegistry_ListingsAndValidated(t *testing.T) {
	r := actions.NewRegistry()
	ok := stub("CREATE_ISSUE")
	blocked := stub("GET_KEY_PERMISSIONS", "COINBASE_KEY_PERMISSIONS")
	blocked.ValidateFn = func(context.Context, actions.Runtime) bool { return false }

	require.NoError(t, r.Register(actions.Plugin{Name: "github", Actions: []actions.Action{ok}}))
	require.NoError(t, r.Register(actions.Plugin{Name: "coinbase", Actions: []actions.Action{blocked}}))

	assert.Len(t, r.Plugins(), 2)
	assert.Len(t, r.Actions(), 2)

	sums := r.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, "coinbase", sums[1].Plugin)
	assert.Equal(t, "GET_KEY_PERMISSIONS (also: COINBASE_KEY_PERMISSIONS): GET_KEY_PERMISSIONS description", sums[1].String())

	valid := r.Validated(context.Background(), &actionstest.Runtime{})
	require.Len(t, valid, 1)
	assert.Equal(t, "CREATE_ISSUE", valid[0].Name())
}

func TestStateGetAndEmit(t *testing.T) {
	var nilState *actions.State
	assert.Equal(t, "", nilState.Get("anything"))

	st := &actions.State{AgentName: "Spiral", RoomID: "r1"}
	st.Set("recentMessages", "hi")
	st.Set("count", 3)
	assert.Equal(t, "Spiral", st.Get("agentName"))
	assert.Equal(t, "r1", st.Get("roomId"))
	assert.Equal(t, "hi", st.Get("recentMessages"))
	assert.Equal(t, "3", st.Get("count"))
	assert.Equal(t, "", st.Get("missing"))

	actions.Emit(nil, actions.Content{Text: "dropped"})
	var got []string
	actions.Emit(func(c actions.Content) { got = append(got, c.Text) }, actions.Content{Text: "kept"})
	assert.Equal(t, []string{"kept"}, got)
}
