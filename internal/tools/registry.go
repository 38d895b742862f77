package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/stark/internal/tools/policy"
	"github.com/haasonsaas/stark/pkg/models"
)

// Registry holds every registered Tool, keyed by name, and compiles each
// tool's ArgumentSchema into a jsonschema.Schema at registration time so
// Execute can validate arguments before a tool ever runs.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds t to the registry, compiling its argument schema. A tool
// whose ArgumentSchema is empty has no runtime validation beyond JSON
// well-formedness.
func (r *Registry) Register(t Tool) error {
	spec := t.Spec()
	schema, err := compileArgumentSchema(spec)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", spec.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = t
	if schema != nil {
		r.schemas[spec.Name] = schema
	}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool's spec, for prompt building and
// admin introspection.
func (r *Registry) List() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Spec())
	}
	return out
}

// Filter returns the subset of registered tools the given policy resolver
// allows, used to build the per-turn tool list presented to the completion
// provider.
func (r *Registry) Filter(resolver *policy.Resolver, p *policy.Policy) []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolSpec, 0, len(r.tools))
	for name, t := range r.tools {
		if resolver == nil || resolver.IsAllowed(p, name) {
			out = append(out, t.Spec())
		}
	}
	return out
}

// GroupOf looks up a registered tool's group, for use as the policy
// resolver's groupOf callback.
func (r *Registry) GroupOf(name string) (models.ToolGroup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return "", false
	}
	return t.Spec().Group, true
}

// ValidateArgs validates raw against the compiled schema for name, if one
// was registered.
func (r *Registry) ValidateArgs(name string, raw json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	var v any
	if len(raw) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return schema.Validate(v)
}

// compileArgumentSchema converts a ToolSpec's flat ArgumentField list into
// a JSON Schema document and compiles it.
func compileArgumentSchema(spec models.ToolSpec) (*jsonschema.Schema, error) {
	if len(spec.ArgumentSchema) == 0 {
		return nil, nil
	}
	properties := make(map[string]any, len(spec.ArgumentSchema))
	var required []string
	for _, f := range spec.ArgumentSchema {
		prop := map[string]any{"type": f.Type}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := "tool:" + spec.Name
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}
