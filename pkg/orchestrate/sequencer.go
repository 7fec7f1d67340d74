// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package orchestrate turns one natural-language request into a plan of
// registered actions and runs the plan step by step.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/audit"
	"github.com/HarshModi2005/realityspiral/pkg/config"
	"github.com/HarshModi2005/realityspiral/pkg/generate"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/providers"
	"github.com/HarshModi2005/realityspiral/pkg/ratelimit"
	"github.com/HarshModi2005/realityspiral/pkg/tracing"
)

var (
	ErrInvalidPlanContent = errors.New("invalid plan content")
	ErrActionNotFound     = errors.New("action not found")
	ErrHandlerExecution   = errors.New("action handler failed")
)

// StepSource is the content source stamped on every synthetic step request.
const StepSource = "github"

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Step     Step
	Status   Status
	Result   *actions.Result
	Err      error
	Duration time.Duration
}

// Outcome summarizes a run. Steps holds one entry per planned step; entries
// after a failure are StatusSkipped.
type Outcome struct {
	RunID     string
	Plan      Plan
	Steps     []StepResult
	Completed int
}

// Failed returns the failing step, if any.
func (o *Outcome) Failed() (StepResult, bool) {
	for _, s := range o.Steps {
		if s.Status == StatusFailed {
			return s, true
		}
	}
	return StepResult{}, false
}

type Options struct {
	// Timeout bounds plan generation. Zero waits indefinitely.
	Timeout time.Duration
	// StepTimeout bounds each handler call. Zero waits indefinitely.
	StepTimeout time.Duration
	// DiagnosticsDir receives the prompt, plan and result dumps. Empty
	// disables them.
	DiagnosticsDir string
	// Template overrides DefaultTemplate.
	Template string
	// LLMOptions is passed to the provider for the planning call.
	LLMOptions map[string]any
	Observer   Observer
	Audit      *audit.Logger
	// Limiter throttles handler calls, keyed by action name.
	Limiter *ratelimit.Limiter
}

// OptionsFromConfig reads timeouts, diagnostics and rate limits from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	cfg.RLock()
	oc, llm, perMinute := cfg.Orchestrator, cfg.LLM, cfg.RateLimits.ActionCallsPerMinute
	cfg.RUnlock()

	opts := Options{
		Timeout:        time.Duration(oc.PlanTimeout) * time.Second,
		StepTimeout:    time.Duration(oc.StepTimeout) * time.Second,
		DiagnosticsDir: cfg.DiagnosticsPath(),
		LLMOptions:     providers.Options(llm),
	}
	if perMinute > 0 {
		opts.Limiter = ratelimit.NewLimiter(ratelimit.PerMinute(perMinute))
	}
	return opts
}

// Sequencer plans and runs orchestration requests against a registry.
// Steps run one at a time on the caller's goroutine.
type Sequencer struct {
	rt       actions.Runtime
	registry *actions.Registry
	opts     Options
	diag     *Diagnostics
}

func NewSequencer(rt actions.Runtime, registry *actions.Registry, opts Options) *Sequencer {
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	return &Sequencer{
		rt:       rt,
		registry: registry,
		opts:     opts,
		diag:     NewDiagnostics(opts.DiagnosticsDir),
	}
}

// GeneratePlan renders the planning prompt against state and asks the model
// for a plan. Output that does not match PlanSchema yields
// ErrInvalidPlanContent.
func (s *Sequencer) GeneratePlan(ctx context.Context, state *actions.State) (Plan, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	ctx, span := tracing.Start(ctx, "orchestrate.plan")

	prompt := generate.Render(s.opts.Template, state)
	s.diag.WriteContext(prompt)

	var plan Plan
	err := generate.Object(ctx, s.rt.Provider(), s.rt.Model(), prompt, PlanSchema(), &plan, s.opts.LLMOptions)
	if err != nil {
		if errors.Is(err, generate.ErrInvalidContent) {
			err = fmt.Errorf("%w: %v", ErrInvalidPlanContent, err)
		} else {
			err = fmt.Errorf("generate plan: %w", err)
		}
		logger.ErrorCF("orchestrate", "Plan generation failed", map[string]any{
			"error": err.Error(),
		})
		tracing.End(span, err)
		return Plan{}, err
	}

	s.diag.WritePlan(plan)
	span.SetAttributes(tracing.IntAttr("steps", len(plan.Steps)))
	tracing.End(span, nil)

	logger.InfoCF("orchestrate", "Plan generated", map[string]any{
		"steps":   len(plan.Steps),
		"actions": plan.ActionNames(),
	})
	return plan, nil
}

// ExecuteStep resolves step's action, records a synthetic request for it in
// memory, then runs the handler with a nil state so it composes its own.
// Errors are reported through cb and returned in a failed StepResult.
func (s *Sequencer) ExecuteStep(ctx context.Context, index int, step Step, state *actions.State, cb actions.Callback) StepResult {
	start := time.Now()
	res := StepResult{Index: index, Step: step}

	fail := func(err error) StepResult {
		res.Status = StatusFailed
		res.Err = err
		res.Duration = time.Since(start)
		logger.ErrorCF("orchestrate", "Step failed", map[string]any{
			"index":  index,
			"action": step.ActionName,
			"error":  err.Error(),
		})
		actions.Emit(cb, actions.Content{
			Text:   fmt.Sprintf("Error executing action %s. Please try again.", step.ActionName),
			Action: ActionName,
			Source: StepSource,
		})
		return res
	}

	action, ok := s.registry.Resolve(step.ActionName)
	if !ok {
		return fail(fmt.Errorf("%w: %s", ErrActionNotFound, step.ActionName))
	}
	if action.Name() == ActionName && running(ctx) {
		return fail(fmt.Errorf("%w: step %d resolved to %s", ErrNestedOrchestration, index, step.ActionName))
	}

	req := &memory.Memory{
		Content: memory.Content{
			Text:   step.UserText,
			Action: step.ActionName,
			Source: StepSource,
		},
	}
	if state != nil {
		req.UserID = state.UserID
		req.AgentID = state.AgentID
		req.RoomID = state.RoomID
	}
	if err := s.rt.Memory().CreateMemory(ctx, req); err != nil {
		return fail(fmt.Errorf("record step request: %w", err))
	}

	if err := s.opts.Limiter.Wait(ctx, action.Name()); err != nil {
		return fail(fmt.Errorf("%w: %s: %v", ErrHandlerExecution, step.ActionName, err))
	}

	stepCtx := ctx
	if s.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, s.opts.StepTimeout)
		defer cancel()
	}
	stepCtx, span := tracing.Start(stepCtx, "action."+action.Name(),
		tracing.StringAttr("action", step.ActionName),
		tracing.IntAttr("index", index),
	)

	logger.InfoCF("orchestrate", "Step started", map[string]any{
		"index":   index,
		"action":  step.ActionName,
		"handler": action.Name(),
	})

	result, err := action.Handle(stepCtx, s.rt, req, nil, nil, cb)
	if auditErr := s.opts.Audit.LogAction(action.Name(), req.UserID, req.RoomID, err, map[string]any{"index": index}); auditErr != nil {
		logger.WarnCF("orchestrate", "Audit write failed", map[string]any{
			"action": action.Name(),
			"error":  auditErr.Error(),
		})
	}
	tracing.End(span, err)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrHandlerExecution, step.ActionName, err))
	}
	if result == nil {
		result = &actions.Result{}
	}
	s.diag.WriteResult(step.ActionName, result)

	res.Status = StatusSucceeded
	res.Result = result
	res.Duration = time.Since(start)
	logger.InfoCF("orchestrate", "Step completed", map[string]any{
		"index":       index,
		"action":      step.ActionName,
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res
}

// Run plans req and executes the plan in order, stopping at the first failed
// step. Completed steps are not rolled back. When state is nil it is
// composed from req. The state must carry a room, since every step request
// is recorded there. Run fails with ErrNestedOrchestration when ctx belongs
// to a run already in progress.
func (s *Sequencer) Run(ctx context.Context, req *memory.Memory, state *actions.State, cb actions.Callback) (*Outcome, error) {
	if running(ctx) {
		return nil, ErrNestedOrchestration
	}
	state, err := actions.PrepareState(ctx, s.rt, req, state)
	if err != nil {
		return nil, fmt.Errorf("prepare state: %w", err)
	}
	if state.RoomID == "" {
		return nil, fmt.Errorf("orchestrate: %w", memory.ErrMissingRoom)
	}
	ctx = context.WithValue(ctx, runningKey{}, true)

	out := &Outcome{RunID: uuid.NewString()}
	ctx, span := tracing.Start(ctx, "orchestrate.run", tracing.StringAttr("run_id", out.RunID))
	s.emit(Event{Type: EventRunStarted, RunID: out.RunID, RoomID: state.RoomID})

	out.Plan, err = s.GeneratePlan(ctx, state)
	if err != nil {
		s.finish(span, out, state, err)
		return out, err
	}
	s.emit(Event{Type: EventPlanGenerated, RunID: out.RunID, RoomID: state.RoomID, Steps: out.Plan.Steps})

	for i, step := range out.Plan.Steps {
		s.emit(Event{Type: EventStepStarted, RunID: out.RunID, RoomID: state.RoomID, Index: i, Action: step.ActionName})
		res := s.ExecuteStep(ctx, i, step, state, cb)
		out.Steps = append(out.Steps, res)

		ev := Event{Type: EventStepFinished, RunID: out.RunID, RoomID: state.RoomID, Index: i, Action: step.ActionName, Status: res.Status}
		if res.Err != nil {
			ev.Error = res.Err.Error()
		}
		s.emit(ev)

		if res.Status == StatusFailed {
			for j := i + 1; j < len(out.Plan.Steps); j++ {
				out.Steps = append(out.Steps, StepResult{Index: j, Step: out.Plan.Steps[j], Status: StatusSkipped})
			}
			s.finish(span, out, state, res.Err)
			return out, res.Err
		}
		out.Completed++
	}

	s.finish(span, out, state, nil)
	return out, nil
}

func (s *Sequencer) finish(span trace.Span, out *Outcome, state *actions.State, err error) {
	ev := Event{Type: EventRunFinished, RunID: out.RunID, RoomID: state.RoomID, Index: out.Completed, Status: StatusSucceeded}
	if err != nil {
		ev.Status = StatusFailed
		ev.Error = err.Error()
	}
	s.emit(ev)
	if auditErr := s.opts.Audit.LogOrchestration(state.RoomID, out.Plan.ActionNames(), out.Completed, err); auditErr != nil {
		logger.WarnCF("orchestrate", "Audit write failed", map[string]any{
			"run_id": out.RunID,
			"error":  auditErr.Error(),
		})
	}

	span.SetAttributes(tracing.IntAttr("completed", out.Completed))
	tracing.End(span, err)

	logger.InfoCF("orchestrate", "Orchestration finished", map[string]any{
		"run_id":    out.RunID,
		"planned":   len(out.Plan.Steps),
		"completed": out.Completed,
		"status":    string(ev.Status),
	})
}

func (s *Sequencer) emit(e Event) {
	if s.opts.Observer == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.opts.Observer.Observe(e)
}
