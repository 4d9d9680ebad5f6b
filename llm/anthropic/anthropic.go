// Package anthropic implements llm.Provider over the Anthropic
// messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/llm"
	"github.com/ternlabs/liveagent/tools"
)

// Config for the Anthropic provider.
type Config struct {
	APIKey  string
	BaseURL string
}

// Provider implements llm.Provider for Anthropic's API.
type Provider struct {
	client anthropic.Client
}

// New creates a provider with the given config.
func New(cfg Config) *Provider {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{client: anthropic.NewClient(opts...)}
}

// Chat sends a messages request and maps the response.
func (p *Provider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", liveagent.ErrModelCommunication, err)
	}
	return fromAnthropicResponse(resp)
}

func toAnthropicMessages(msgs []llm.Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args, _ := json.Marshal(tc.Args)
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: json.RawMessage(args),
					},
				})
			}
			result = append(result, anthropic.NewAssistantMessage(content...))

		case llm.RoleTool:
			// Tool observations travel as user messages.
			if msg.ToolResult != nil {
				result = append(result, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(
						msg.ToolResult.ToolCallID,
						msg.ToolResult.Content,
						msg.ToolResult.IsError,
					),
				))
			}

		default:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}
	return result
}

func toAnthropicTools(defs []tools.Definition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(defs))
	for i, d := range defs {
		inputSchema := anthropic.ToolInputSchemaParam{Type: "object"}
		if props, ok := d.Parameters["properties"]; ok {
			inputSchema.Properties = props
		}
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: inputSchema,
			},
		}
	}
	return result
}

func fromAnthropicResponse(resp *anthropic.Message) (*llm.Response, error) {
	result := &llm.Response{
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}

	switch resp.StopReason {
	case "tool_use":
		result.StopReason = llm.StopReasonToolUse
	case "max_tokens":
		result.StopReason = llm.StopReasonLength
	default:
		result.StopReason = llm.StopReasonEnd
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			args := make(map[string]any)
			if err := json.Unmarshal(block.Input, &args); err != nil {
				return nil, fmt.Errorf("%w: tool input: %v", liveagent.ErrMalformedModelOutput, err)
			}
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			})
		}
	}
	return result, nil
}
