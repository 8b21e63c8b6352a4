// Package tools exposes the automation engine as a flat set of named
// operations, each taking a JSON object of arguments and returning a JSON
// object result, served over a line-delimited stdio protocol.
package tools

import (
	"context"
	"sort"
)

// Tool is one named operation.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	// Execute runs the operation. Soft failures (element not found,
	// timeout) come back as results with success:false; the error return is
	// reserved for terminal failures such as an unreachable browser.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Registry holds the registered tools.
type Registry struct {
	byName map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds a tool; a duplicate name replaces the previous tool.
func (r *Registry) Register(t Tool) {
	r.byName[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns name/description/schema for every tool, sorted by name.
func (r *Registry) Describe() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.byName))
	for _, name := range r.Names() {
		t := r.byName[name]
		out = append(out, map[string]interface{}{
			"name":        t.Name(),
			"description": t.Description(),
			"inputSchema": t.InputSchema(),
		})
	}
	return out
}
