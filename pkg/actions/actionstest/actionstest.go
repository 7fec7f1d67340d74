// Package actionstest provides action and runtime doubles for tests.
package actionstest

import (
	"context"
	"sync"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/providers"
)

// Call records one Handle invocation.
type Call struct {
	Action  string
	Request *memory.Memory
	State   *actions.State
	Options map[string]any
}

// Recorder collects calls across several stub actions in invocation order.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Names returns the action names of the recorded calls.
func (r *Recorder) Names() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, c.Action)
	}
	return out
}

// Stub is a configurable actions.Action.
type Stub struct {
	ActionName string
	Aliases    []string
	Desc       string
	Recorder   *Recorder
	ValidateFn func(ctx context.Context, rt actions.Runtime) bool
	HandleFn   func(ctx context.Context, req *memory.Memory) (*actions.Result, error)
}

func (s *Stub) Name() string        { return s.ActionName }
func (s *Stub) Similes() []string   { return s.Aliases }
func (s *Stub) Description() string { return s.Desc }

func (s *Stub) Validate(ctx context.Context, rt actions.Runtime) bool {
	if s.ValidateFn == nil {
		return true
	}
	return s.ValidateFn(ctx, rt)
}

func (s *Stub) Handle(ctx context.Context, _ actions.Runtime, req *memory.Memory, state *actions.State, options map[string]any, _ actions.Callback) (*actions.Result, error) {
	if s.Recorder != nil {
		s.Recorder.record(Call{Action: s.ActionName, Request: req, State: state, Options: options})
	}
	if s.HandleFn != nil {
		return s.HandleFn(ctx, req)
	}
	return &actions.Result{Text: s.ActionName + " done"}, nil
}

// Runtime is an in-memory actions.Runtime.
type Runtime struct {
	ID        string
	Name      string
	Settings  map[string]string
	Store     memory.Store
	LLM       providers.LLMProvider
	ModelName string
}

func (r *Runtime) AgentID() string   { return r.ID }
func (r *Runtime) AgentName() string { return r.Name }

func (r *Runtime) GetSetting(key string) string { return r.Settings[key] }

func (r *Runtime) Memory() memory.Store            { return r.Store }
func (r *Runtime) Provider() providers.LLMProvider { return r.LLM }
func (r *Runtime) Model() string                   { return r.ModelName }

func (r *Runtime) ComposeState(_ context.Context, msg *memory.Memory) (*actions.State, error) {
	st := &actions.State{AgentID: r.ID, AgentName: r.Name}
	if msg != nil {
		st.UserID = msg.UserID
		st.RoomID = msg.RoomID
		st.Set("message", msg.Content.Text)
	}
	return st, nil
}

// MemoryStore is a goroutine-safe in-memory memory.Store that also records
// the global order of writes.
type MemoryStore struct {
	mu      sync.Mutex
	records []memory.Memory
	// OnCreate runs after each successful write.
	OnCreate func(m memory.Memory)
	// Err is returned by CreateMemory when set.
	Err error
}

func (s *MemoryStore) CreateMemory(_ context.Context, m *memory.Memory) error {
	if s.Err != nil {
		return s.Err
	}
	if m.ID == "" {
		m.ID = m.Content.Action + "-" + m.RoomID
	}
	s.mu.Lock()
	s.records = append(s.records, *m)
	hook := s.OnCreate
	s.mu.Unlock()
	if hook != nil {
		hook(*m)
	}
	return nil
}

func (s *MemoryStore) GetMemories(_ context.Context, roomID string, limit int) ([]memory.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []memory.Memory{}
	for _, m := range s.records {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

// Records returns every stored memory in write order.
func (s *MemoryStore) Records() []memory.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]memory.Memory, len(s.records))
	copy(out, s.records)
	return out
}

// Provider is a providers.LLMProvider that replays canned replies in order
// and records every request.
type Provider struct {
	mu       sync.Mutex
	Replies  []string
	Err      error
	requests [][]providers.Message
	options  []map[string]any
	// Block makes Chat wait for ctx to be done before replying.
	Block bool
}

func (p *Provider) Chat(ctx context.Context, messages []providers.Message, _ string, options map[string]any) (*providers.LLMResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, messages)
	p.options = append(p.options, options)
	var reply string
	if len(p.Replies) > 0 {
		reply = p.Replies[0]
		p.Replies = p.Replies[1:]
	}
	err, block := p.Err, p.Block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &providers.LLMResponse{Content: reply, FinishReason: "stop"}, nil
}

func (p *Provider) GetDefaultModel() string { return "test-model" }

// Requests returns the message lists passed to Chat.
func (p *Provider) Requests() [][]providers.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]providers.Message, len(p.requests))
	copy(out, p.requests)
	return out
}

// Options returns the option maps passed to Chat.
func (p *Provider) Options() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]any, len(p.options))
	copy(out, p.options)
	return out
}
