package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

var (
	ErrInvalidPlugin = errors.New("invalid plugin")
	ErrInvalidAction = errors.New("invalid action")
)

// Registry holds plugins in registration order. Resolution scans plugins in
// that order and each plugin's actions in declaration order, so the first
// action answering to a name wins.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register checks p's shape and appends it. A rejected plugin leaves the
// registry unchanged.
func (r *Registry) Register(p Plugin) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPlugin)
	}
	seen := make(map[string]struct{}, len(p.Actions))
	for i, a := range p.Actions {
		if a == nil {
			return fmt.Errorf("%w: plugin %s action %d is nil", ErrInvalidAction, p.Name, i)
		}
		name := a.Name()
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: plugin %s action %d has no name", ErrInvalidAction, p.Name, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: plugin %s declares %s twice", ErrInvalidAction, p.Name, name)
		}
		seen[name] = struct{}{}
		for _, s := range a.Similes() {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: %s has an empty simile", ErrInvalidAction, name)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.plugins {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: plugin %s already registered", ErrInvalidPlugin, p.Name)
		}
	}

	// shadowed names still register; Resolve keeps returning the earlier one
	for name := range seen {
		if prev, ok := r.resolveLocked(name); ok {
			logger.WarnCF("actions", "Action name already answered by an earlier plugin", map[string]any{
				"plugin":   p.Name,
				"action":   name,
				"resolves": prev.Name(),
			})
		}
	}

	actions := make([]Action, len(p.Actions))
	copy(actions, p.Actions)
	p.Actions = actions
	r.plugins = append(r.plugins, p)

	logger.DebugCF("actions", "Plugin registered", map[string]any{
		"plugin":  p.Name,
		"actions": len(p.Actions),
	})
	return nil
}

// Resolve returns the first action whose name or simile equals name.
func (r *Registry) Resolve(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (Action, bool) {
	for _, p := range r.plugins {
		for _, a := range p.Actions {
			if Matches(a, name) {
				return a, true
			}
		}
	}
	return nil, false
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Actions returns every registered action in resolution order.
func (r *Registry) Actions() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Action
	for _, p := range r.plugins {
		out = append(out, p.Actions...)
	}
	return out
}

func (r *Registry) Summaries() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Summary
	for _, p := range r.plugins {
		for _, a := range p.Actions {
			out = append(out, Summary{
				Plugin:      p.Name,
				Name:        a.Name(),
				Similes:     a.Similes(),
				Description: a.Description(),
			})
		}
	}
	return out
}

// Validated returns the actions whose Validate passes against rt.
func (r *Registry) Validated(ctx context.Context, rt Runtime) []Action {
	var out []Action
	for _, a := range r.Actions() {
		if a.Validate(ctx, rt) {
			out = append(out, a)
		}
	}
	return out
}
