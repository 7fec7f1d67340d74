package anthropicprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/HarshModi2005/realityspiral/pkg/providers/protocoltypes"
)

type (
	LLMResponse = protocoltypes.LLMResponse
	UsageInfo   = protocoltypes.UsageInfo
	Message     = protocoltypes.Message
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
)

type Provider struct {
	client  *anthropic.Client
	baseURL string
	model   string
}

func NewProvider(apiKey string) *Provider {
	return NewProviderWithBaseURL(apiKey, "")
}

func NewProviderWithBaseURL(apiKey, apiBase string) *Provider {
	baseURL := normalizeBaseURL(apiBase)
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &Provider{
		client:  &client,
		baseURL: baseURL,
		model:   defaultModel,
	}
}

// WithModel overrides the default model and returns p.
func (p *Provider) WithModel(model string) *Provider {
	if strings.TrimSpace(model) != "" {
		p.model = strings.TrimSpace(model)
	}
	return p
}

func (p *Provider) Chat(
	ctx context.Context,
	messages []Message,
	model string,
	options map[string]any,
) (*LLMResponse, error) {
	if strings.TrimSpace(model) == "" {
		model = p.model
	}
	params := buildParams(messages, model, options)
	if len(params.Messages) == 0 {
		return nil, errors.New("claude API call: no user or assistant messages")
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("claude API call failed (status=%d): %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("claude API call: %w", err)
	}
	out := parseResponse(resp)
	if pre := prefill(messages, options); pre != "" && !strings.HasPrefix(strings.TrimSpace(out.Content), pre) {
		out.Content = pre + out.Content
	}
	return out, nil
}

// prefill returns the assistant turn that opens a JSON reply when json_mode
// is set, or "" when the conversation already ends with an assistant turn.
func prefill(messages []Message, options map[string]any) string {
	if on, _ := options["json_mode"].(bool); !on {
		return ""
	}
	if n := len(messages); n > 0 && messages[n-1].Role == "assistant" {
		return ""
	}
	return "{"
}

func (p *Provider) GetDefaultModel() string {
	return p.model
}

func (p *Provider) BaseURL() string {
	return p.baseURL
}

func buildParams(messages []Message, model string, options map[string]any) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	if pre := prefill(messages, options); pre != "" && len(out) > 0 {
		out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(pre)))
	}

	maxTokens := int64(defaultMaxTokens)
	if mt, ok := options["max_tokens"].(int); ok && mt > 0 {
		maxTokens = int64(mt)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  out,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(temp)
	}
	return params
}

func parseResponse(resp *anthropic.Message) *LLMResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.AsText().Text)
		}
	}

	finishReason := "stop"
	if resp.StopReason == anthropic.StopReasonMaxTokens {
		finishReason = "length"
	}

	return &LLMResponse{
		Content:      content.String(),
		FinishReason: finishReason,
		Usage: &UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func normalizeBaseURL(apiBase string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return defaultBaseURL
	}
	return base
}
