package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

const ActionName = "ORCHESTRATE"

// ErrNestedOrchestration is returned when a plan step resolves back to
// ORCHESTRATE while a run is already in progress.
var ErrNestedOrchestration = errors.New("nested orchestration is not allowed")

type runningKey struct{}

func running(ctx context.Context) bool {
	return ctx.Value(runningKey{}) != nil
}

// Action plans and executes a sequence of registered actions for one
// request.
type Action struct {
	registry *actions.Registry
	opts     Options
}

func NewAction(registry *actions.Registry, opts Options) *Action {
	return &Action{registry: registry, opts: opts}
}

func (a *Action) Name() string { return ActionName }

func (a *Action) Similes() []string {
	return []string{"PLAN", "SEQUENCE", "EXECUTE_PLAN", "ORCHESTRATE_ACTIONS"}
}

func (a *Action) Description() string {
	return "Orchestrates a sequence of actions to fulfill a complex request"
}

func (a *Action) Validate(_ context.Context, rt actions.Runtime) bool {
	return rt.GetSetting("GITHUB_API_TOKEN") != ""
}

func (a *Action) Handle(
	ctx context.Context,
	rt actions.Runtime,
	req *memory.Memory,
	state *actions.State,
	_ map[string]any,
	cb actions.Callback,
) (*actions.Result, error) {
	out, err := NewSequencer(rt, a.registry, a.opts).Run(ctx, req, state, cb)
	if err != nil {
		return nil, err
	}

	steps := make([]map[string]any, 0, len(out.Steps))
	var texts []string
	for _, s := range out.Steps {
		entry := map[string]any{
			"action": s.Step.ActionName,
			"status": string(s.Status),
		}
		if s.Result != nil && s.Result.Text != "" {
			entry["text"] = s.Result.Text
			texts = append(texts, s.Result.Text)
		}
		steps = append(steps, entry)
	}

	text := fmt.Sprintf("Successfully executed orchestration plan with %d actions", out.Completed)
	if len(texts) > 0 {
		text += ":\n" + strings.Join(texts, "\n")
	}
	return &actions.Result{
		Text: text,
		Data: map[string]any{"run_id": out.RunID, "steps": steps},
	}, nil
}

// Plugin wraps the ORCHESTRATE action. registry is the one plan steps are
// resolved against.
func Plugin(registry *actions.Registry, opts Options) actions.Plugin {
	return actions.Plugin{
		Name:        "githubOrchestrate",
		Description: "Integration with GitHub for orchestrating complex operations",
		Actions:     []actions.Action{NewAction(registry, opts)},
	}
}
