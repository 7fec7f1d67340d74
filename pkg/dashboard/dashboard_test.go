package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/actions/actionstest"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/orchestrate"
)

const testKey = "s3cret"

type fixture struct {
	srv   *Server
	http  *httptest.Server
	store *actionstest.MemoryStore
	llm   *actionstest.Provider
}

func newFixture(t *testing.T, apiKey string, replies ...string) *fixture {
	t.Helper()
	store := &actionstest.MemoryStore{}
	llm := &actionstest.Provider{Replies: replies}
	rt := &actionstest.Runtime{
		ID:        "agent-1",
		Name:      "Spiral",
		Settings:  map[string]string{"GITHUB_API_TOKEN": "ghp_test"},
		Store:     store,
		LLM:       llm,
		ModelName: "test-model",
	}

	issue := &actionstest.Stub{ActionName: "CREATE_ISSUE", Aliases: []string{"OPEN_ISSUE"}, Desc: "Creates an issue"}
	failing := &actionstest.Stub{ActionName: "MERGE_PULL_REQUEST", Desc: "Merges a pull request"}
	failing.HandleFn = func(context.Context, *memory.Memory) (*actions.Result, error) {
		return nil, errors.New("merge conflict")
	}
	coinbase := &actionstest.Stub{ActionName: "GET_KEY_PERMISSIONS", Desc: "Reads key permissions"}
	coinbase.ValidateFn = func(context.Context, actions.Runtime) bool { return false }

	registry := actions.NewRegistry()
	require.NoError(t, registry.Register(actions.Plugin{Name: "github", Actions: []actions.Action{issue, failing}}))
	require.NoError(t, registry.Register(actions.Plugin{Name: "coinbase", Actions: []actions.Action{coinbase}}))

	srv := New(rt, registry, Options{APIKey: apiKey})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &fixture{srv: srv, http: hs, store: store, llm: llm}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestAuth(t *testing.T) {
	f := newFixture(t, testKey)

	resp, _ := f.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/status", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/status", "", "Authorization", "Bearer "+testKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/status", "", "X-API-Key", testKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/status?token="+testKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// index and health stay public
	resp, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "RealitySpiral")
	resp, _ = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginCookie(t *testing.T) {
	f := newFixture(t, testKey)

	resp, _ := f.do(t, http.MethodPost, "/api/login", `{"api_key":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/login", `{"api_key":"`+testKey+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			session = c
		}
	}
	require.NotNil(t, session)

	req, _ := http.NewRequest(http.MethodGet, f.http.URL+"/api/status", nil)
	req.AddCookie(session)
	got, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
}

func TestSession(t *testing.T) {
	now := time.Now()
	value, expiry := signSession(testKey, now)
	assert.True(t, expiry.After(now))
	assert.True(t, verifySession(value, testKey, now))
	assert.False(t, verifySession(value, "other", now))
	assert.False(t, verifySession(value, testKey, now.Add(sessionMaxAge+time.Minute)))
	assert.False(t, verifySession("garbage", testKey, now))
	assert.False(t, verifySession("abc.zz", testKey, now))
}

func TestOpenDashboard(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]any
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "Spiral", status["agent_name"])
	assert.Equal(t, float64(2), status["plugins"])
	assert.Equal(t, float64(3), status["actions"])
}

func TestPlugins(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.do(t, http.MethodGet, "/api/plugins", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var plugins []struct {
		Name    string `json:"name"`
		Actions []struct {
			Name    string   `json:"name"`
			Similes []string `json:"similes"`
			Valid   bool     `json:"valid"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(body, &plugins))
	require.Len(t, plugins, 2)
	assert.Equal(t, "github", plugins[0].Name)
	require.Len(t, plugins[0].Actions, 2)
	assert.Equal(t, []string{"OPEN_ISSUE"}, plugins[0].Actions[0].Similes)
	assert.True(t, plugins[0].Actions[0].Valid)
	assert.False(t, plugins[1].Actions[0].Valid)
}

func TestMemories(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, f.store.CreateMemory(ctx, &memory.Memory{RoomID: "room-1", Content: memory.Content{Text: text}}))
	}

	resp, _ := f.do(t, http.MethodGet, "/api/memories", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/api/memories?room=room-1&limit=x", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/memories?room=room-1&limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mems []memory.Memory
	require.NoError(t, json.Unmarshal(body, &mems))
	require.Len(t, mems, 2)
	assert.Equal(t, "two", mems[0].Content.Text)
	assert.Equal(t, "three", mems[1].Content.Text)
}

func TestOrchestrate(t *testing.T) {
	plan := `{"githubActions":[{"githubAction":"CREATE_ISSUE","user":"Create an issue about flaky tests"}]}`
	f := newFixture(t, "", plan)

	resp, _ := f.do(t, http.MethodPost, "/api/orchestrate", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/orchestrate", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/orchestrate", `{"text":"file an issue","room_id":"room-9"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out orchestrateResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 1, out.Completed)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "CREATE_ISSUE", out.Steps[0].Action)
	assert.Equal(t, "succeeded", out.Steps[0].Status)
	assert.Equal(t, "CREATE_ISSUE done", out.Steps[0].Text)
	assert.Empty(t, out.Error)

	records := f.store.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "file an issue", records[0].Content.Text)
	assert.Equal(t, "dashboard", records[0].UserID)
	assert.Equal(t, "room-9", records[0].RoomID)
	assert.Equal(t, "CREATE_ISSUE", records[1].Content.Action)
}

func TestOrchestrate_StepFailure(t *testing.T) {
	plan := `{"githubActions":[` +
		`{"githubAction":"MERGE_PULL_REQUEST","user":"merge #3"},` +
		`{"githubAction":"CREATE_ISSUE","user":"follow up"}]}`
	f := newFixture(t, "", plan)

	resp, body := f.do(t, http.MethodPost, "/api/orchestrate", `{"text":"merge then follow up","room_id":"r"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out orchestrateResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 0, out.Completed)
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "failed", out.Steps[0].Status)
	assert.Contains(t, out.Steps[0].Error, "merge conflict")
	assert.Equal(t, "skipped", out.Steps[1].Status)
	assert.NotEmpty(t, out.Error)
	require.NotEmpty(t, out.Messages)
	assert.Equal(t, "Error executing action MERGE_PULL_REQUEST. Please try again.", out.Messages[0].Text)
}

func TestOrchestrate_InvalidPlan(t *testing.T) {
	f := newFixture(t, "", "I cannot help with that")

	resp, body := f.do(t, http.MethodPost, "/api/orchestrate", `{"text":"do things"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var out orchestrateResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Contains(t, out.Error, "invalid plan content")
	assert.Empty(t, out.Steps)
}

func TestWebsocketEvents(t *testing.T) {
	plan := `{"githubActions":[{"githubAction":"CREATE_ISSUE","user":"go"}]}`
	f := newFixture(t, testKey, plan)

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+testKey, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp2, _ := f.do(t, http.MethodPost, "/api/orchestrate", `{"text":"go","room_id":"ws-room"}`, "X-API-Key", testKey)
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var types []orchestrate.EventType
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(types) < 5 {
		var e orchestrate.Event
		require.NoError(t, conn.ReadJSON(&e))
		assert.Equal(t, "ws-room", e.RoomID)
		types = append(types, e.Type)
	}
	assert.Equal(t, []orchestrate.EventType{
		orchestrate.EventRunStarted,
		orchestrate.EventPlanGenerated,
		orchestrate.EventStepStarted,
		orchestrate.EventStepFinished,
		orchestrate.EventRunFinished,
	}, types)
}

func TestHub_DropsWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub()
	ch := h.subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		h.Observe(orchestrate.Event{Type: orchestrate.EventStepStarted, Index: i})
	}
	assert.Len(t, ch, subscriberBuffer)

	h.unsubscribe(ch)
	h.unsubscribe(ch)
	assert.Equal(t, 0, h.ClientCount())

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, subscriberBuffer, n, "buffered events survive close")
}

func TestChainObservers(t *testing.T) {
	var got []string
	a := orchestrate.ObserverFunc(func(e orchestrate.Event) { got = append(got, "a:"+string(e.Type)) })
	b := orchestrate.ObserverFunc(func(e orchestrate.Event) { got = append(got, "b:"+string(e.Type)) })

	chain(nil, a, b).Observe(orchestrate.Event{Type: orchestrate.EventRunStarted})
	assert.Equal(t, []string{"a:run_started", "b:run_started"}, got)
}

func TestServe_StopsOnCancel(t *testing.T) {
	f := newFixture(t, "")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
