// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package actions defines the capability every plugin action implements and
// the registry the orchestrator resolves action names against.
package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/providers"
)

// Content is a message delivered back to the calling surface.
type Content struct {
	Text        string         `json:"text"`
	Action      string         `json:"action,omitempty"`
	Source      string         `json:"source,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Attachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Text        string `json:"text"`
	ContentType string `json:"content_type"`
}

// Callback receives progress and result messages from a handler. It may be
// nil; use Emit to call it safely.
type Callback func(Content)

// Emit calls cb when it is set.
func Emit(cb Callback, c Content) {
	if cb != nil {
		cb(c)
	}
}

// Result is what a handler returns on success. Data is serialized verbatim
// into the orchestrator's per-step diagnostics.
type Result struct {
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Runtime is the slice of the agent a handler may use.
type Runtime interface {
	AgentID() string
	AgentName() string
	// GetSetting returns a named setting such as GITHUB_API_TOKEN, or "".
	GetSetting(key string) string
	Memory() memory.Store
	Provider() providers.LLMProvider
	Model() string
	// ComposeState builds a fresh State for msg.
	ComposeState(ctx context.Context, msg *memory.Memory) (*State, error)
}

// Action is a named capability. Name must be non-empty and unique within its
// plugin; Similes are alternative names the planner may use.
type Action interface {
	Name() string
	Similes() []string
	Description() string
	Validate(ctx context.Context, rt Runtime) bool
	// Handle runs the action for req. state may be nil, in which case the
	// handler composes its own from req.
	Handle(ctx context.Context, rt Runtime, req *memory.Memory, state *State, options map[string]any, cb Callback) (*Result, error)
}

// Plugin is a named group of actions.
type Plugin struct {
	Name        string
	Description string
	Actions     []Action
}

// State is the conversation context a prompt template is rendered against.
type State struct {
	AgentID   string
	AgentName string
	UserID    string
	RoomID    string
	// Values holds template keys such as "recentMessages" or "actions".
	Values map[string]any
}

// Get returns the string form of a template value.
func (s *State) Get(key string) string {
	if s == nil {
		return ""
	}
	switch key {
	case "agentId":
		return s.AgentID
	case "agentName":
		return s.AgentName
	case "userId":
		return s.UserID
	case "roomId":
		return s.RoomID
	}
	v, ok := s.Values[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Set stores a template value.
func (s *State) Set(key string, v any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = v
}

// Matches reports whether a answers to name, either by its primary name or
// one of its similes.
func Matches(a Action, name string) bool {
	if a.Name() == name {
		return true
	}
	for _, s := range a.Similes() {
		if s == name {
			return true
		}
	}
	return false
}

// Summary describes one registered action for listings and prompts.
type Summary struct {
	Plugin      string   `json:"plugin"`
	Name        string   `json:"name"`
	Similes     []string `json:"similes,omitempty"`
	Description string   `json:"description"`
}

func (s Summary) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if len(s.Similes) > 0 {
		b.WriteString(" (also: ")
		b.WriteString(strings.Join(s.Similes, ", "))
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(s.Description)
	return b.String()
}

// StateUpdater is implemented by runtimes that can refresh an existing
// State's recent messages.
type StateUpdater interface {
	UpdateRecentMessageState(ctx context.Context, state *State) error
}

// PrepareState composes a fresh State for msg when state is nil, otherwise
// refreshes state's recent messages when rt supports it.
func PrepareState(ctx context.Context, rt Runtime, msg *memory.Memory, state *State) (*State, error) {
	if state == nil {
		return rt.ComposeState(ctx, msg)
	}
	if u, ok := rt.(StateUpdater); ok {
		if err := u.UpdateRecentMessageState(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}
