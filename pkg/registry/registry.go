// pkg/registry/registry.go
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	ErrDuplicateTool = errors.New("DUPLICATE_TOOL")
	ErrInvalidTool   = errors.New("INVALID_TOOL")
)

// Tool is a callable declared to the completion service. Call receives the raw argument text
// the service produced and returns the text fed back into the transcript.
type Tool interface {
	Spec() ToolSpec
	Call(ctx context.Context, args string) (string, error)
}

// Registry holds the declared tools in registration order.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	order     []string
	overrides map[string]ToolSpec
}

func New(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:     make(map[string]Tool),
		overrides: make(map[string]ToolSpec),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("%w: nil tool", ErrInvalidTool)
	}
	name := t.Spec().Name
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the declared contracts in registration order, with manifest overrides applied.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		spec := r.tools[name].Spec()
		if o, ok := r.overrides[name]; ok {
			if o.Description != "" {
				spec.Description = o.Description
			}
			if len(o.Examples) > 0 {
				spec.Examples = o.Examples
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Apply installs description overrides from a manifest. Entries naming unknown tools are returned.
func (r *Registry) Apply(m *ToolManifest) []string {
	if m == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var unknown []string
	for _, spec := range m.Tools {
		if _, ok := r.tools[spec.Name]; !ok {
			unknown = append(unknown, spec.Name)
			continue
		}
		r.overrides[spec.Name] = spec
	}
	return unknown
}

func LoadManifest(path string) (*ToolManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m ToolManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse tool manifest %s: %w", path, err)
	}
	return &m, nil
}
