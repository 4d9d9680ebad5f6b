package tools

import (
	"context"

	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/sandbox"
)

// QuerySpec declares a tool backed by one parameterized query on a
// registered connector. This is how declarative (config-file) tools are
// built: the query text is fixed at registration time and only the
// bound parameters vary per call.
type QuerySpec struct {
	Name        string
	Description string

	// Connector is the data-source id the query runs against.
	Connector string

	// Query is the parameterized query text (or endpoint path for HTTP
	// connectors).
	Query string

	Params []ParamSpec
}

// ParamSpec declares one parameter of a query tool.
type ParamSpec struct {
	Name        string
	Type        string // string, integer, number, boolean
	Description string
	Required    bool
}

// NewQueryTool builds a tool whose handler routes the spec's query
// through the sandbox. Arguments not declared in the spec are dropped
// before binding, so the model cannot smuggle extra values to the store.
func NewQueryTool(sb *sandbox.Sandbox, spec QuerySpec) *Tool {
	b := NewTool(spec.Name).Description(spec.Description)
	for _, p := range spec.Params {
		switch p.Type {
		case "integer":
			b.IntParam(p.Name, p.Description, p.Required)
		case "number":
			b.NumberParam(p.Name, p.Description, p.Required)
		case "boolean":
			b.BoolParam(p.Name, p.Description, p.Required)
		default:
			b.StringParam(p.Name, p.Description, p.Required)
		}
	}

	declared := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		declared[p.Name] = true
	}

	return b.Handler(func(ctx context.Context, args map[string]any) (*liveagent.QueryResult, error) {
		bound := make(map[string]any, len(args))
		for name, value := range args {
			if declared[name] {
				bound[name] = value
			}
		}
		return sb.Execute(ctx, spec.Connector, spec.Query, bound)
	}).Build()
}
