// Package tools implements the registry of named, schema-described
// callables the planner may invoke to obtain live data.
package tools

import (
	"context"

	liveagent "github.com/ternlabs/liveagent"
)

// Handler executes a tool with validated arguments. The signature is
// fixed so the registry stays closed over one uniform interface: every
// tool produces a live QueryResult or a typed failure.
type Handler func(ctx context.Context, args map[string]any) (*liveagent.QueryResult, error)

// Tool defines a capability the planner can use. Immutable once
// registered.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
	Handler     Handler        `json:"-"`
}

// Definition is the handler-free view handed to the language model.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definition returns the tool's model-facing definition.
func (t *Tool) Definition() Definition {
	return Definition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}
