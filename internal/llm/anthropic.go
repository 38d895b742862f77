// Package llm implements agent.CompletionProvider backends (§4.8's
// "completion provider" boundary). AnthropicProvider is the only backend
// shipped; it talks to the Messages API synchronously, since the
// Dispatcher already owns its own retry and deadline policy (§4.8 step 3)
// and has no use for a token-by-token stream.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/stark/internal/agent"
	"github.com/haasonsaas/stark/pkg/models"
)

// DefaultAnthropicModel is used when AnthropicConfig leaves the model unset.
// CompletionRequest carries no model, so every call uses the provider's
// configured default.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// DefaultMaxTokens bounds a completion when CompletionRequest.MaxTokens is
// left at zero.
const DefaultMaxTokens = 4096

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicProvider implements agent.CompletionProvider against Anthropic's
// Claude models.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicProvider validates config and returns a ready provider.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, errors.New("llm: anthropic API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = DefaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
	}, nil
}

// Name implements agent.CompletionProvider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) model(req agent.CompletionRequest) string {
	return p.defaultModel
}

func (p *AnthropicProvider) maxTokens(req agent.CompletionRequest) int64 {
	if req.MaxTokens > 0 {
		return int64(req.MaxTokens)
	}
	return DefaultMaxTokens
}

// Complete implements agent.CompletionProvider. It converts the flattened
// prompt into Anthropic's message/tool shapes, makes one non-streaming
// call, and converts the reply back. A reply carries either free text or
// one-or-more tool calls, matching CompletionResponse's own contract.
func (p *AnthropicProvider) Complete(ctx context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("llm: convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req)),
		Messages:  messages,
		MaxTokens: p.maxTokens(req),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("llm: convert tools: %w", err)
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic request failed: %w", err)
	}

	return convertResponse(msg), nil
}

func convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(block))
		} else {
			result = append(result, anthropic.NewUserMessage(block))
		}
	}
	return result, nil
}

func convertTools(tools []models.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := argumentSchemaJSON(t.ArgumentSchema)
		var inputSchema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schema, &inputSchema); err != nil {
			return nil, fmt.Errorf("invalid argument schema for %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(t.Description)
		}
		result = append(result, toolParam)
	}
	return result, nil
}

// argumentSchemaJSON renders a ToolSpec's flat ArgumentField list as a JSON
// Schema object, the shape convertTools needs to hand Anthropic.
func argumentSchemaJSON(fields []models.ArgumentField) json.RawMessage {
	properties := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		properties[f.Name] = map[string]any{"type": f.Type}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return raw
}

func convertResponse(msg *anthropic.Message) *agent.CompletionResponse {
	resp := &agent.CompletionResponse{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			input, _ := json.Marshal(toolUse.Input)
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				ID:    toolUse.ID,
				Name:  toolUse.Name,
				Input: input,
			})
		}
	}
	resp.Text = text.String()
	return resp
}
