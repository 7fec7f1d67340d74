package orchestrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

func TestAction_Validate(t *testing.T) {
	f := newFixture(t, "")
	a := NewAction(f.registry, Options{})
	assert.True(t, a.Validate(context.Background(), f.rt))

	f.rt.Settings = nil
	assert.False(t, a.Validate(context.Background(), f.rt))
}

func TestAction_HandleSummarizesSteps(t *testing.T) {
	f := newFixture(t, twoStepPlan)
	f.register(t, "p", f.stub("CREATE_ISSUE"), f.stub("CREATE_PULL_REQUEST"))
	require.NoError(t, f.registry.Register(Plugin(f.registry, Options{DiagnosticsDir: f.dir})))

	orchestrate, ok := f.registry.Resolve("EXECUTE_PLAN")
	require.True(t, ok)
	assert.Equal(t, ActionName, orchestrate.Name())

	res, err := orchestrate.Handle(context.Background(), f.rt, &memory.Memory{RoomID: "room-1"}, testState(), nil, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Successfully executed orchestration plan with 2 actions")
	assert.Contains(t, res.Text, "CREATE_PULL_REQUEST done")
	steps := res.Data["steps"].([]map[string]any)
	require.Len(t, steps, 2)
	assert.Equal(t, "succeeded", steps[1]["status"])
}

func TestAction_RejectsNestedRun(t *testing.T) {
	f := newFixture(t, `{"githubActions":[{"githubAction":"ORCHESTRATE","user":"again"}]}`)
	f.registry.Register(Plugin(f.registry, Options{DiagnosticsDir: f.dir}))

	var messages []actions.Content
	orchestrate, _ := f.registry.Resolve(ActionName)
	_, err := orchestrate.Handle(context.Background(), f.rt, &memory.Memory{}, testState(), nil, func(c actions.Content) {
		messages = append(messages, c)
	})
	assert.ErrorIs(t, err, ErrNestedOrchestration)
	require.Len(t, messages, 1)
	assert.Equal(t, "Error executing action ORCHESTRATE. Please try again.", messages[0].Text)
}
