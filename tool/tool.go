// Package tool defines the tool registry the agent draws from. Tool names
// and stage identifiers are restricted to marker-safe characters here, at the
// registration boundary, so the marker encoder never has to escape them.
package tool

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// identifierRe is the character set allowed for tool names and stage ids.
// Markers use ':' and ']' as delimiters, so neither may appear here.
var identifierRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ProgressFunc reports a fine-grained stage update from inside a tool.
// Implementations may call it zero or more times before returning.
type ProgressFunc func(stage, message string)

// Handler executes a tool. The returned string is the result summary handed
// back to the model; a non-nil error marks the invocation failed without
// aborting the turn.
type Handler func(ctx context.Context, args map[string]any, onProgress ProgressFunc) (string, error)

// Parameter describes one input field of a tool.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool is a named, schema-typed capability the agent may invoke.
type Tool struct {
	Name        string      `json:"name"`
	Label       string      `json:"label"` // human-readable, shown in WORK markers
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Execute validates arguments and runs the handler. onProgress may be nil.
func (t *Tool) Execute(ctx context.Context, args map[string]any, onProgress ProgressFunc) (string, error) {
	if t.Handler == nil {
		return "", fmt.Errorf("tool %s has no handler", t.Name)
	}
	if err := t.ValidateArgs(args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if onProgress == nil {
		onProgress = func(string, string) {}
	}
	return t.Handler(ctx, args, onProgress)
}

// ValidateArgs checks that all required parameters are present.
func (t *Tool) ValidateArgs(args map[string]any) error {
	for _, param := range t.Parameters {
		if param.Required {
			if _, ok := args[param.Name]; !ok {
				return fmt.Errorf("missing required parameter: %s", param.Name)
			}
		}
	}
	return nil
}

// ToJSONSchema returns the tool definition in the JSON schema shape the
// model backends expect.
func (t *Tool) ToJSONSchema() map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	for _, param := range t.Parameters {
		prop := map[string]any{
			"type":        param.Type,
			"description": param.Description,
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// Registry manages a collection of tools. All operations are safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Names must match the marker-safe identifier set and
// be unique within the registry.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if !identifierRe.MatchString(t.Name) {
		return fmt.Errorf("tool name %q contains reserved characters", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return t, nil
}

// List returns all registered tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Labels returns the display label for every registered tool.
func (r *Registry) Labels() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make(map[string]string, len(r.tools))
	for name, t := range r.tools {
		labels[name] = t.Label
	}
	return labels
}

// ToJSONSchemas returns all tool definitions in JSON schema form.
func (r *Registry) ToJSONSchemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].ToJSONSchema())
	}
	return schemas
}

// Execute runs a tool by name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, onProgress ProgressFunc) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return t.Execute(ctx, args, onProgress)
}
