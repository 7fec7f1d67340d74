// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package dashboard serves a small HTTP surface over the agent: registered
// plugins, room memories, an orchestration endpoint and a live event stream.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/orchestrate"
)

//go:embed static
var staticFiles embed.FS

const shutdownTimeout = 5 * time.Second

type Options struct {
	// APIKey protects every /api route and the event streams. Empty leaves
	// the dashboard open.
	APIKey      string
	Orchestrate orchestrate.Options
}

type Server struct {
	rt       actions.Runtime
	registry *actions.Registry
	hub      *Hub
	apiKey   string
	orch     orchestrate.Options
	start    time.Time
}

// New wires a dashboard over rt and registry. The hub is added to the
// orchestration observers so runs started here, or through opts elsewhere,
// reach connected clients.
func New(rt actions.Runtime, registry *actions.Registry, opts Options) *Server {
	hub := NewHub()
	orch := opts.Orchestrate
	orch.Observer = chain(orch.Observer, hub)
	return &Server{
		rt:       rt,
		registry: registry,
		hub:      hub,
		apiKey:   opts.APIKey,
		orch:     orch,
		start:    time.Now(),
	}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("GET /api/plugins", s.requireAuth(s.handlePlugins))
	mux.HandleFunc("GET /api/memories", s.requireAuth(s.handleMemories))
	mux.HandleFunc("POST /api/orchestrate", s.requireAuth(s.handleOrchestrate))
	mux.HandleFunc("GET /api/events", s.requireAuth(s.handleSSE))
	mux.HandleFunc("GET /ws", s.requireAuth(s.handleWS))
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("dashboard", "Dashboard listening", map[string]any{
			"addr": ln.Addr().String(),
			"auth": s.apiKey != "",
		})
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WarnCF("dashboard", "Shutdown incomplete", map[string]any{"error": err.Error()})
		return err
	}
	logger.InfoC("dashboard", "Dashboard stopped")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index.html not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
