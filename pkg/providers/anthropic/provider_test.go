package anthropicprovider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParams_SystemAndMessages(t *testing.T) {
	params := buildParams([]Message{
		{Role: "system", Content: "You extract GitHub parameters"},
		{Role: "user", Content: "Open an issue"},
		{Role: "assistant", Content: "{}"},
	}, "claude-sonnet-4-5", map[string]any{"max_tokens": 1024, "temperature": 0.2})

	assert.Equal(t, "claude-sonnet-4-5", string(params.Model))
	assert.EqualValues(t, 1024, params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "You extract GitHub parameters", params.System[0].Text)
	assert.Len(t, params.Messages, 2)
	assert.True(t, params.Temperature.Valid())
}

func TestBuildParams_DefaultMaxTokens(t *testing.T) {
	params := buildParams([]Message{{Role: "user", Content: "hi"}}, "m", nil)
	assert.EqualValues(t, defaultMaxTokens, params.MaxTokens)
}

func TestBuildParams_JSONModePrefill(t *testing.T) {
	params := buildParams([]Message{{Role: "user", Content: "plan"}}, "m", map[string]any{"json_mode": true})
	require.Len(t, params.Messages, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params.Messages[1].Role)

	params = buildParams([]Message{{Role: "user", Content: "plan"}}, "m", nil)
	assert.Len(t, params.Messages, 1)

	params = buildParams([]Message{{Role: "system", Content: "only system"}}, "m", map[string]any{"json_mode": true})
	assert.Empty(t, params.Messages)
}

func TestParseResponse_StopReasons(t *testing.T) {
	tests := []struct {
		reason anthropic.StopReason
		want   string
	}{
		{anthropic.StopReasonEndTurn, "stop"},
		{anthropic.StopReasonMaxTokens, "length"},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			got := parseResponse(&anthropic.Message{StopReason: tt.reason})
			assert.Equal(t, tt.want, got.FinishReason)
		})
	}
}

func TestProvider_ChatRoundTrip(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-5", "stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": `{"owner":"octo",`},
				{"type": "text", "text": `"repo":"spiral"}`},
			},
			"usage": map[string]any{"input_tokens": 15, "output_tokens": 8},
		})
	}))
	defer server.Close()

	p := NewProviderWithBaseURL("test-key", server.URL)
	resp, err := p.Chat(t.Context(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "Hello"},
	}, "", map[string]any{"max_tokens": 512})
	require.NoError(t, err)

	assert.Equal(t, `{"owner":"octo","repo":"spiral"}`, resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 23, resp.Usage.TotalTokens)
	assert.Equal(t, defaultModel, body["model"])
	assert.EqualValues(t, 512, body["max_tokens"])
}

func TestProvider_ChatJSONModeRestoresBrace(t *testing.T) {
	var body struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_2", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-5", "stop_reason": "end_turn",
			"content": []map[string]any{{"type": "text", "text": `"githubActions":[]}`}},
			"usage":   map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer server.Close()

	p := NewProviderWithBaseURL("test-key", server.URL)
	resp, err := p.Chat(t.Context(), []Message{{Role: "user", Content: "plan"}}, "", map[string]any{"json_mode": true})
	require.NoError(t, err)
	assert.Equal(t, `{"githubActions":[]}`, resp.Content)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "assistant", body.Messages[1].Role)
}

func TestProvider_ChatRequiresMessages(t *testing.T) {
	p := NewProvider("k")
	_, err := p.Chat(t.Context(), []Message{{Role: "system", Content: "only system"}}, "m", nil)
	assert.Error(t, err)
}

func TestProvider_Defaults(t *testing.T) {
	p := NewProviderWithBaseURL("token", "https://api.anthropic.com/v1/")
	assert.Equal(t, "https://api.anthropic.com", p.BaseURL())
	assert.Equal(t, defaultModel, p.GetDefaultModel())
	assert.Equal(t, "claude-opus-4-1", p.WithModel("claude-opus-4-1").GetDefaultModel())
	assert.Equal(t, defaultBaseURL, NewProvider("t").BaseURL())
}
