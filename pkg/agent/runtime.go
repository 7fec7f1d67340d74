// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package agent wires configuration, memory, the language model and the
// action registry into the Runtime every action handler receives.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/config"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/providers"
)

const defaultRecentMessages = 32

// Runtime implements actions.Runtime.
type Runtime struct {
	id       string
	name     string
	store    memory.Store
	provider providers.LLMProvider
	model    string
	registry *actions.Registry
	settings Settings
	recent   int
}

func NewRuntime(cfg *config.Config, store memory.Store, provider providers.LLMProvider, registry *actions.Registry) *Runtime {
	cfg.RLock()
	defer cfg.RUnlock()

	model := cfg.LLM.Model
	if model == "" && provider != nil {
		model = provider.GetDefaultModel()
	}
	recent := cfg.Agent.RecentMessages
	if recent <= 0 {
		recent = defaultRecentMessages
	}
	if registry == nil {
		registry = actions.NewRegistry()
	}

	return &Runtime{
		id:       cfg.Agent.ID,
		name:     cfg.Agent.Name,
		store:    store,
		provider: provider,
		model:    model,
		registry: registry,
		settings: settingsFromConfigLocked(cfg),
		recent:   recent,
	}
}

func (r *Runtime) AgentID() string   { return r.id }
func (r *Runtime) AgentName() string { return r.name }

func (r *Runtime) GetSetting(key string) string { return r.settings.Get(key) }

func (r *Runtime) Memory() memory.Store            { return r.store }
func (r *Runtime) Provider() providers.LLMProvider { return r.provider }
func (r *Runtime) Model() string                   { return r.model }
func (r *Runtime) Registry() *actions.Registry     { return r.registry }

// ComposeState builds a State for msg holding the agent identity, the room's
// recent messages, the available actions and the message text.
func (r *Runtime) ComposeState(ctx context.Context, msg *memory.Memory) (*actions.State, error) {
	st := &actions.State{AgentID: r.id, AgentName: r.name}
	if msg != nil {
		st.UserID = msg.UserID
		st.RoomID = msg.RoomID
		st.Set("message", msg.Content.Text)
	}

	names := make([]string, 0)
	lines := make([]string, 0)
	for _, s := range r.registry.Summaries() {
		names = append(names, s.Name)
		lines = append(lines, "- "+s.String())
	}
	st.Set("actionNames", strings.Join(names, ", "))
	st.Set("actions", strings.Join(lines, "\n"))

	if err := r.UpdateRecentMessageState(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// UpdateRecentMessageState reloads recentMessages for the state's room.
func (r *Runtime) UpdateRecentMessageState(ctx context.Context, st *actions.State) error {
	if st == nil || st.RoomID == "" || r.store == nil {
		return nil
	}
	mems, err := r.store.GetMemories(ctx, st.RoomID, r.recent)
	if err != nil {
		return fmt.Errorf("agent: load recent messages: %w", err)
	}
	st.Set("recentMessages", r.formatMessages(mems))

	logger.DebugCF("agent", "Recent messages loaded", map[string]any{
		"room":  st.RoomID,
		"count": len(mems),
	})
	return nil
}

func (r *Runtime) formatMessages(mems []memory.Memory) string {
	var sb strings.Builder
	for i, m := range mems {
		if i > 0 {
			sb.WriteByte('\n')
		}
		speaker := "user"
		if m.UserID == "" || m.UserID == r.id {
			speaker = r.name
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(m.Content.Text)
		if m.Content.Action != "" {
			sb.WriteString(" (")
			sb.WriteString(m.Content.Action)
			sb.WriteByte(')')
		}
	}
	return sb.String()
}
