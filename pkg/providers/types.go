package providers

import (
	"context"

	"github.com/HarshModi2005/realityspiral/pkg/providers/protocoltypes"
)

type (
	Message     = protocoltypes.Message
	UsageInfo   = protocoltypes.UsageInfo
	LLMResponse = protocoltypes.LLMResponse
)

// LLMProvider is a chat completion backend. options understands
// "max_tokens" (int) and "temperature" (float64).
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]any) (*LLMResponse, error)
	GetDefaultModel() string
}
