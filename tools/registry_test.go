package tools

import (
	"context"
	"errors"
	"testing"

	liveagent "github.com/ternlabs/liveagent"
)

func noopHandler(ctx context.Context, args map[string]any) (*liveagent.QueryResult, error) {
	return &liveagent.QueryResult{}, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	tool := NewTool("get_inventory").
		Description("Current stock for a product.").
		StringParam("name", "Product name.", true).
		Handler(noopHandler).
		Build()

	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.Resolve("get_inventory")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Name != "get_inventory" {
		t.Errorf("Name = %q", got.Name)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryDuplicateFails(t *testing.T) {
	r := NewRegistry()

	first := NewTool("get_price").Handler(noopHandler).Build()
	second := NewTool("get_price").Handler(noopHandler).Build()

	if err := r.Register(first); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(second)
	if !errors.Is(err, liveagent.ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}

	// The original registration must survive the collision.
	got, err := r.Resolve("get_price")
	if err != nil {
		t.Fatal(err)
	}
	if got != first {
		t.Error("duplicate registration replaced the original tool")
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("missing")
	if !errors.Is(err, liveagent.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryRejectsInvalidTools(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(nil); err == nil {
		t.Error("nil tool accepted")
	}
	if err := r.Register(&Tool{Name: "no_handler"}); err == nil {
		t.Error("tool without handler accepted")
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := r.Register(NewTool(name).Handler(noopHandler).Build()); err != nil {
			t.Fatal(err)
		}
	}

	defs := r.Definitions()
	want := []string{"alpha", "mike", "zulu"}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("defs[%d] = %q, want %q", i, defs[i].Name, name)
		}
	}
}

func TestValidateArgs(t *testing.T) {
	tool := NewTool("get_inventory").
		StringParam("name", "Product name.", true).
		IntParam("limit", "Max rows.", false).
		Handler(noopHandler).
		Build()

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{
			name: "valid",
			args: map[string]any{"name": "laptop", "limit": float64(5)},
		},
		{
			name: "optional omitted",
			args: map[string]any{"name": "laptop"},
		},
		{
			name:    "missing required",
			args:    map[string]any{"limit": float64(5)},
			wantErr: true,
		},
		{
			name:    "undeclared parameter",
			args:    map[string]any{"name": "laptop", "verbose": true},
			wantErr: true,
		},
		{
			name:    "wrong type",
			args:    map[string]any{"name": 42},
			wantErr: true,
		},
		{
			name:    "fractional value for integer",
			args:    map[string]any{"name": "laptop", "limit": 2.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(tool, tt.args)
			if tt.wantErr {
				if !errors.Is(err, liveagent.ErrInvalidToolArguments) {
					t.Fatalf("expected ErrInvalidToolArguments, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuilderSchema(t *testing.T) {
	tool := NewTool("t").
		StringParam("a", "first", true).
		BoolParam("b", "second", false).
		Handler(noopHandler).
		Build()

	props, ok := tool.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatal("properties missing")
	}
	if _, ok := props["a"]; !ok {
		t.Error("param a missing from schema")
	}
	if _, ok := props["b"]; !ok {
		t.Error("param b missing from schema")
	}

	required := requiredParams(tool.Parameters)
	if len(required) != 1 || required[0] != "a" {
		t.Errorf("required = %v, want [a]", required)
	}
}
