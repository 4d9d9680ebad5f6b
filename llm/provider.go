// Package llm defines the provider-agnostic language model interface
// the planner consumes.
package llm

import (
	"context"

	"github.com/ternlabs/liveagent/tools"
)

// Provider is the capability the planner needs from a language model:
// given conversation state and tool schemas, return either a structured
// tool invocation or a final answer.
type Provider interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}

// Request is a provider-agnostic chat request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []tools.Definition
	MaxTokens   int
	Temperature float32
}

// Role is the message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a provider-agnostic conversation message.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
}

// ToolCall is a structured tool invocation proposed by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult carries a tool observation back to the model.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopReasonEnd     StopReason = "end"
	StopReasonToolUse StopReason = "tool_use"
	StopReasonLength  StopReason = "length"
)

// Response is a provider-agnostic model response.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason StopReason
	Usage      Usage
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
