// Package generate asks a language model for free text or for a JSON value
// that must satisfy a JSON schema.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/providers"
)

// ErrInvalidContent means the model output was not JSON or did not satisfy
// the schema.
var ErrInvalidContent = errors.New("generated content failed validation")

const objectInstructions = "Respond with a single JSON value and nothing else. " +
	"The value must conform to this JSON schema:\n"

// Text returns the model's reply to prompt.
func Text(ctx context.Context, p providers.LLMProvider, model, prompt string, options map[string]any) (string, error) {
	resp, err := p.Chat(ctx, []providers.Message{{Role: "user", Content: prompt}}, model, options)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// Object prompts the model with prompt and schema, validates the reply and
// decodes it into out.
func Object(
	ctx context.Context,
	p providers.LLMProvider,
	model, prompt string,
	schema *jsonschema.Schema,
	out any,
	options map[string]any,
) error {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}

	opts := make(map[string]any, len(options)+1)
	for k, v := range options {
		opts[k] = v
	}
	opts["json_mode"] = true

	resp, err := p.Chat(ctx, []providers.Message{
		{Role: "system", Content: objectInstructions + string(schemaJSON)},
		{Role: "user", Content: prompt},
	}, model, opts)
	if err != nil {
		return err
	}

	raw := ExtractJSON(resp.Content)
	var instance any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		logger.DebugCF("generate", "Model returned non-JSON content", map[string]any{
			"content": truncate(resp.Content, 500),
		})
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if err := resolved.Validate(instance); err != nil {
		logger.DebugCF("generate", "Model output does not match schema", map[string]any{
			"content": truncate(raw, 500),
			"error":   err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return nil
}

// ExtractJSON strips markdown code fences and surrounding prose, returning
// the outermost JSON object or array in s.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
