// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

package providers

import (
	"fmt"
	"strings"
	"time"

	anthropicprovider "github.com/HarshModi2005/realityspiral/pkg/providers/anthropic"
	"github.com/HarshModi2005/realityspiral/pkg/providers/openai_sdk"

	"github.com/HarshModi2005/realityspiral/pkg/config"
)

// openAICompatibleBases maps provider names that speak the OpenAI chat
// completions protocol to their default API base.
var openAICompatibleBases = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"ollama":     "http://localhost:11434/v1",
	"vllm":       "",
}

// CreateProvider builds the provider named by cfg.Provider.
func CreateProvider(cfg config.LLMConfig) (LLMProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = "openai"
	}

	if name == "anthropic" || name == "claude" {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		base := cfg.BaseURL
		if strings.Contains(base, "api.openai.com") {
			base = ""
		}
		return anthropicprovider.NewProviderWithBaseURL(cfg.APIKey, base).WithModel(cfg.Model), nil
	}

	defaultBase, ok := openAICompatibleBases[name]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	base := cfg.BaseURL
	if base == "" || (name != "openai" && strings.Contains(base, "api.openai.com")) {
		base = defaultBase
	}
	if base == "" {
		return nil, fmt.Errorf("llm provider %q requires base_url", name)
	}

	opts := []openai_sdk.Option{openai_sdk.WithDefaultModel(cfg.Model)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, openai_sdk.WithRequestTimeout(time.Duration(cfg.RequestTimeout)*time.Second))
	}
	return openai_sdk.NewProvider(cfg.APIKey, base, opts...), nil
}

// Options returns the chat options derived from cfg.
func Options(cfg config.LLMConfig) map[string]any {
	opts := map[string]any{"temperature": cfg.Temperature}
	if cfg.MaxTokens > 0 {
		opts["max_tokens"] = cfg.MaxTokens
	}
	return opts
}
