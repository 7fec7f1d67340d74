// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package mcpserver exposes registered actions as Model Context Protocol
// tools. Each call is recorded in memory as a user request and handed to the
// action like any other message.
package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

const sourceMCP = "mcp"

type Input struct {
	Text   string `json:"text" jsonschema:"natural-language request for the action"`
	RoomID string `json:"room_id,omitempty" jsonschema:"conversation room; a new one is created when empty"`
}

type Output struct {
	Text     string         `json:"text,omitempty"`
	RoomID   string         `json:"room_id"`
	Data     map[string]any `json:"data,omitempty"`
	Messages []string       `json:"messages,omitempty"`
}

// New returns an MCP server with one tool per registered action. Names
// shadowed by an earlier plugin are skipped so every tool resolves to the
// action the registry would pick.
func New(rt actions.Runtime, registry *actions.Registry, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "realityspiral", Version: version}, nil)

	seen := make(map[string]bool)
	for _, a := range registry.Actions() {
		if seen[a.Name()] {
			continue
		}
		seen[a.Name()] = true
		mcp.AddTool(server, &mcp.Tool{Name: a.Name(), Description: describe(a)}, handler(rt, a))
	}

	logger.InfoCF("mcp", "Tools registered", map[string]any{"count": len(seen)})
	return server
}

// Serve runs the server over stdin/stdout until the client disconnects or
// ctx is cancelled.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func describe(a actions.Action) string {
	d := a.Description()
	if similes := a.Similes(); len(similes) > 0 {
		d += " (also: " + strings.Join(similes, ", ") + ")"
	}
	return d
}

func handler(rt actions.Runtime, a actions.Action) mcp.ToolHandlerFor[Input, Output] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in Input) (*mcp.CallToolResult, Output, error) {
		out := Output{RoomID: in.RoomID}
		if strings.TrimSpace(in.Text) == "" {
			return errorResult("text is required"), out, nil
		}
		if !a.Validate(ctx, rt) {
			return errorResult(fmt.Sprintf("%s is not configured", a.Name())), out, nil
		}
		if out.RoomID == "" {
			out.RoomID = uuid.NewString()
		}

		req := &memory.Memory{
			UserID:  sourceMCP,
			AgentID: rt.AgentID(),
			RoomID:  out.RoomID,
			Content: memory.Content{Text: in.Text, Action: a.Name(), Source: sourceMCP},
		}
		if err := rt.Memory().CreateMemory(ctx, req); err != nil {
			return nil, out, fmt.Errorf("record request: %w", err)
		}

		var mu sync.Mutex
		cb := func(c actions.Content) {
			mu.Lock()
			out.Messages = append(out.Messages, c.Text)
			mu.Unlock()
		}

		res, err := a.Handle(ctx, rt, req, nil, nil, cb)
		if err != nil {
			logger.WarnCF("mcp", "Tool call failed", map[string]any{
				"tool":  a.Name(),
				"error": err.Error(),
			})
			return errorResult(err.Error()), out, nil
		}
		if res != nil {
			out.Text = res.Text
			out.Data = res.Data
		}

		text := out.Text
		if text == "" {
			mu.Lock()
			text = strings.Join(out.Messages, "\n")
			mu.Unlock()
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, out, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
