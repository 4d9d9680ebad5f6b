package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	liveagent "github.com/ternlabs/liveagent"
)

// Registry maps tool names to their definitions and handlers. Populated
// at startup and read-mostly afterwards; registration is guarded for
// the rare late addition.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool. Registering a name twice fails with
// ErrDuplicateTool: silent overwrites would let one tool shadow
// another's safety policy.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", liveagent.ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", liveagent.ErrUnknownTool, name)
	}
	return t, nil
}

// Definitions returns every tool's model-facing definition, sorted by
// name so prompts stay deterministic.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many tools are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ValidateArgs checks a proposed argument set against the tool's
// parameter schema before the handler runs. Missing required parameters
// or mistyped values fail with ErrInvalidToolArguments.
func ValidateArgs(t *Tool, args map[string]any) error {
	var missing []string
	for _, name := range requiredParams(t.Parameters) {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s missing required parameters: %s",
			liveagent.ErrInvalidToolArguments, t.Name, strings.Join(missing, ", "))
	}

	props, _ := t.Parameters["properties"].(map[string]any)
	for name, value := range args {
		schema, ok := props[name].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s does not accept parameter %q",
				liveagent.ErrInvalidToolArguments, t.Name, name)
		}
		declared, _ := schema["type"].(string)
		if !typeMatches(declared, value) {
			return fmt.Errorf("%w: parameter %q must be of type %s",
				liveagent.ErrInvalidToolArguments, name, declared)
		}
	}
	return nil
}

func requiredParams(parameters map[string]any) []string {
	switch req := parameters["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

func typeMatches(declared string, value any) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch n := value.(type) {
		case int, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "":
		return true
	}
	return true
}
