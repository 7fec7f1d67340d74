// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNilMemory   = errors.New("memory: nil record")
	ErrMissingRoom = errors.New("memory: record has no room id")
)

// Content is the payload of a conversation record.
type Content struct {
	Text     string         `json:"text"`
	Action   string         `json:"action,omitempty"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Memory is one durable conversation record, either an inbound message, a
// synthetic request built by the orchestrator, or an agent response.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	RoomID    string    `json:"room_id"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds conversation memories. Writes are append-only.
type Store interface {
	// CreateMemory persists m, assigning ID and CreatedAt when unset.
	CreateMemory(ctx context.Context, m *Memory) error

	// GetMemories returns up to limit of the most recent records of a room in
	// insertion order. limit <= 0 returns all of them. An unknown room yields
	// an empty, non-nil slice.
	GetMemories(ctx context.Context, roomID string, limit int) ([]Memory, error)

	Close() error
}

// prepare validates m and fills in the generated fields.
func prepare(m *Memory) error {
	if m == nil {
		return ErrNilMemory
	}
	if m.RoomID == "" {
		return ErrMissingRoom
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// tail keeps the last limit elements.
func tail(ms []Memory, limit int) []Memory {
	if limit > 0 && len(ms) > limit {
		ms = ms[len(ms)-limit:]
	}
	if ms == nil {
		ms = []Memory{}
	}
	return ms
}
