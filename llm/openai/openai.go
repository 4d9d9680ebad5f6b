// Package openai implements llm.Provider over the OpenAI chat
// completions API. A custom base URL also serves Ollama and other
// OpenAI-compatible endpoints.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	oai "github.com/sashabaranov/go-openai"
	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/llm"
)

// Config for the OpenAI provider.
type Config struct {
	APIKey string

	// BaseURL overrides the API endpoint, e.g.
	// "http://localhost:11434/v1" for Ollama.
	BaseURL string
}

// Provider implements llm.Provider for OpenAI-compatible APIs.
type Provider struct {
	client *oai.Client
}

// New creates a provider with the given config.
func New(cfg Config) *Provider {
	clientCfg := oai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{client: oai.NewClientWithConfig(clientCfg)}
}

// Chat sends a chat completion request and maps the response.
func (p *Provider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", liveagent.ErrModelCommunication, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", liveagent.ErrMalformedModelOutput)
	}

	choice := resp.Choices[0]
	result := &llm.Response{
		Content: choice.Message.Content,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: tool call arguments: %v", liveagent.ErrMalformedModelOutput, err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	switch {
	case len(result.ToolCalls) > 0:
		result.StopReason = llm.StopReasonToolUse
	case choice.FinishReason == oai.FinishReasonLength:
		result.StopReason = llm.StopReasonLength
	default:
		result.StopReason = llm.StopReasonEnd
	}
	return result, nil
}

func (p *Provider) buildRequest(req llm.Request) oai.ChatCompletionRequest {
	messages := make([]oai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, oai.ChatCompletionMessage{
			Role:    oai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, toOpenAIMessage(msg))
	}

	out := oai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	if len(req.Tools) > 0 {
		oaiTools := make([]oai.Tool, 0, len(req.Tools))
		for _, def := range req.Tools {
			oaiTools = append(oaiTools, oai.Tool{
				Type: oai.ToolTypeFunction,
				Function: &oai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
		out.Tools = oaiTools
	}
	return out
}

func toOpenAIMessage(msg llm.Message) oai.ChatCompletionMessage {
	switch msg.Role {
	case llm.RoleTool:
		out := oai.ChatCompletionMessage{Role: oai.ChatMessageRoleTool}
		if msg.ToolResult != nil {
			out.ToolCallID = msg.ToolResult.ToolCallID
			out.Content = msg.ToolResult.Content
		}
		return out
	case llm.RoleAssistant:
		out := oai.ChatCompletionMessage{
			Role:    oai.ChatMessageRoleAssistant,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			out.ToolCalls = append(out.ToolCalls, oai.ToolCall{
				ID:   tc.ID,
				Type: oai.ToolTypeFunction,
				Function: oai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		return out
	default:
		return oai.ChatCompletionMessage{
			Role:    oai.ChatMessageRoleUser,
			Content: msg.Content,
		}
	}
}
