package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/orchestrate"
)

const (
	defaultMemoryLimit = 50
	maxRequestBody     = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnCF("dashboard", "Failed to write response", map[string]any{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":   s.rt.AgentID(),
		"agent_name": s.rt.AgentName(),
		"model":      s.rt.Model(),
		"plugins":    len(s.registry.Plugins()),
		"actions":    len(s.registry.Actions()),
		"clients":    s.hub.ClientCount(),
		"uptime":     time.Since(s.start).Round(time.Second).String(),
	})
}

type pluginView struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Actions     []actionView `json:"actions"`
}

type actionView struct {
	actions.Summary
	Valid bool `json:"valid"`
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	valid := make(map[string]bool)
	for _, a := range s.registry.Validated(r.Context(), s.rt) {
		valid[a.Name()] = true
	}

	byPlugin := make(map[string][]actionView)
	for _, sum := range s.registry.Summaries() {
		byPlugin[sum.Plugin] = append(byPlugin[sum.Plugin], actionView{Summary: sum, Valid: valid[sum.Name]})
	}

	out := make([]pluginView, 0)
	for _, p := range s.registry.Plugins() {
		views := byPlugin[p.Name]
		if views == nil {
			views = []actionView{}
		}
		out = append(out, pluginView{Name: p.Name, Description: p.Description, Actions: views})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		writeError(w, http.StatusBadRequest, "room is required")
		return
	}
	limit := defaultMemoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	mems, err := s.rt.Memory().GetMemories(r.Context(), room, limit)
	if err != nil {
		logger.ErrorCF("dashboard", "Failed to load memories", map[string]any{
			"room":  room,
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "failed to load memories")
		return
	}
	writeJSON(w, http.StatusOK, mems)
}

type orchestrateRequest struct {
	Text   string `json:"text"`
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

type stepView struct {
	Index      int    `json:"index"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type orchestrateResponse struct {
	RunID     string            `json:"run_id"`
	Completed int               `json:"completed"`
	Steps     []stepView        `json:"steps"`
	Messages  []actions.Content `json:"messages"`
	Error     string            `json:"error,omitempty"`
}

// handleOrchestrate records the request text in the room and runs it through
// a sequencer. A failed step still answers 200 with the error set, so the
// client sees which steps completed; planning failures answer 502.
func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var body orchestrateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if body.RoomID == "" {
		body.RoomID = uuid.NewString()
	}
	if body.UserID == "" {
		body.UserID = "dashboard"
	}

	ctx := r.Context()
	req := &memory.Memory{
		UserID:  body.UserID,
		AgentID: s.rt.AgentID(),
		RoomID:  body.RoomID,
		Content: memory.Content{Text: body.Text, Source: "dashboard"},
	}
	if err := s.rt.Memory().CreateMemory(ctx, req); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record request")
		return
	}

	var (
		mu       sync.Mutex
		messages = make([]actions.Content, 0)
	)
	cb := func(c actions.Content) {
		mu.Lock()
		messages = append(messages, c)
		mu.Unlock()
	}

	out, err := orchestrate.NewSequencer(s.rt, s.registry, s.orch).Run(ctx, req, nil, cb)
	resp := orchestrateResponse{Steps: make([]stepView, 0)}
	if out != nil {
		resp.RunID = out.RunID
		resp.Completed = out.Completed
		for _, st := range out.Steps {
			v := stepView{
				Index:      st.Index,
				Action:     st.Step.ActionName,
				Status:     string(st.Status),
				DurationMS: st.Duration.Milliseconds(),
			}
			if st.Result != nil {
				v.Text = st.Result.Text
			}
			if st.Err != nil {
				v.Error = st.Err.Error()
			}
			resp.Steps = append(resp.Steps, v)
		}
	}
	mu.Lock()
	resp.Messages = messages
	mu.Unlock()

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		if out == nil || len(out.Steps) == 0 {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, resp)
}
