// Package tools provides the tool framework the tutoring loop exposes to
// the model, plus the lyric acquisition tools.
package tools

import (
	"context"
	"sync"
)

// Tool is the interface all tools must implement.
type Tool interface {
	Name() string
	Description() string
	Spec() *ToolSpec
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry manages available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Specs returns specs for all registered tools.
func (r *Registry) Specs() []*ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]*ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

// stringArg reads a string argument, empty if absent or mistyped.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
