package tools

// Builder provides a fluent API for declaring tools.
type Builder struct {
	tool *Tool
}

// NewTool starts building a tool with the given name.
func NewTool(name string) *Builder {
	return &Builder{
		tool: &Tool{
			Name:       name,
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}, "required": []string{}},
		},
	}
}

// Description sets the human-readable description the model uses to
// choose the tool.
func (b *Builder) Description(desc string) *Builder {
	b.tool.Description = desc
	return b
}

// StringParam adds a string parameter.
func (b *Builder) StringParam(name, description string, required bool) *Builder {
	return b.param(name, "string", description, required)
}

// IntParam adds an integer parameter.
func (b *Builder) IntParam(name, description string, required bool) *Builder {
	return b.param(name, "integer", description, required)
}

// NumberParam adds a numeric parameter.
func (b *Builder) NumberParam(name, description string, required bool) *Builder {
	return b.param(name, "number", description, required)
}

// BoolParam adds a boolean parameter.
func (b *Builder) BoolParam(name, description string, required bool) *Builder {
	return b.param(name, "boolean", description, required)
}

func (b *Builder) param(name, paramType, description string, required bool) *Builder {
	props := b.tool.Parameters["properties"].(map[string]any)
	props[name] = map[string]any{"type": paramType, "description": description}
	if required {
		req := b.tool.Parameters["required"].([]string)
		b.tool.Parameters["required"] = append(req, name)
	}
	return b
}

// Handler sets the tool handler.
func (b *Builder) Handler(h Handler) *Builder {
	b.tool.Handler = h
	return b
}

// Build returns the completed tool.
func (b *Builder) Build() *Tool {
	return b.tool
}
