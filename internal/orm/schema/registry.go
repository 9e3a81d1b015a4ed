// Package schema provides a registry for managing resource schemas
package schema

import (
	"fmt"
	"sync"
	"time"
)

// Registry manages all resource schemas known to the client. It is safe for
// concurrent use.
type Registry struct {
	schemas   map[string]*Resource
	validator *SchemaValidator
	mu        sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas:   make(map[string]*Resource),
		validator: NewSchemaValidator(),
	}
}

// Register registers a new resource schema
func (r *Registry) Register(res *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[res.Name]; exists {
		return fmt.Errorf("resource %s is already registered", res.Name)
	}

	// relations are checked by ValidateAll to allow forward references
	if err := r.validator.ValidateStructural(res); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", res.Name, err)
	}

	r.schemas[res.Name] = res
	return nil
}

// RegisterRaw builds and registers a resource schema from its raw definition
func (r *Registry) RegisterRaw(name string, raw any) error {
	res, err := NewBuilder().BuildResource(name, raw)
	if err != nil {
		return err
	}
	return r.Register(res)
}

// Replace swaps the whole schema set in one step. The new set is validated
// before it becomes visible.
func (r *Registry) Replace(schemas map[string]*Resource) error {
	for _, name := range sortedKeys(schemas) {
		if err := NewSchemaValidator().ValidateStructural(schemas[name]); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", name, err)
		}
	}
	if err := NewRelationshipValidator(schemas).Validate(); err != nil {
		return fmt.Errorf("relationship validation failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = schemas
	return nil
}

// Get retrieves a resource schema by name
func (r *Registry) Get(name string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.schemas[name]
	if !ok {
		return nil, &UnknownTypeError{Kind: "schema", Name: name}
	}
	return res, nil
}

// All returns a copy of all registered schemas
func (r *Registry) All() map[string]*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Resource, len(r.schemas))
	for k, v := range r.schemas {
		result[k] = v
	}
	return result
}

// Names returns the registered resource names in lexical order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.schemas)
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// Exists checks if a resource schema exists
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[name]
	return ok
}

// Clear removes all registered schemas (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = make(map[string]*Resource)
}

// ValidateAll checks relations across all registered schemas
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := NewRelationshipValidator(r.schemas).Validate(); err != nil {
		return fmt.Errorf("relationship validation failed: %w", err)
	}
	return nil
}

// DependencyOrder returns resource names with referenced resources first,
// which is a safe order for creating seed data
func (r *Registry) DependencyOrder() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return NewRelationshipGraph(r.schemas).TopologicalSort()
}

// DefaultValue synthesizes the value a fresh field of this schema starts
// with: the declared default if any, otherwise a type-appropriate zero value
func (r *Registry) DefaultValue(f *Field) any {
	return DefaultValue(f)
}

// DefaultData synthesizes the payload of a fresh resource
func (r *Registry) DefaultData(name string) (map[string]any, error) {
	res, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	data := make(map[string]any, len(res.Fields))
	for _, f := range res.Fields {
		data[f.Name] = DefaultValue(f)
	}
	return data, nil
}

// DefaultValue is the registry-independent form of Registry.DefaultValue
func DefaultValue(f *Field) any {
	if f == nil {
		return nil
	}
	if f.Default != nil {
		return copyDefault(f.Default)
	}
	switch {
	case f.Type == TypeString:
		return ""
	case f.Type == TypeObjectID && !f.IsEmbedded():
		return ""
	case f.Type.IsNumeric():
		return float64(0)
	case f.Type == TypeBoolean:
		return false
	case f.Type == TypeDatetime:
		return time.Now().UTC().Truncate(time.Second)
	case f.Type == TypePoint:
		return map[string]any{"type": "Point", "coordinates": []any{float64(0), float64(0)}}
	case f.Type == TypeList:
		return []any{}
	case f.Type == TypeDict:
		data := make(map[string]any, len(f.Fields))
		for _, c := range f.Fields {
			data[c.Name] = DefaultValue(c)
		}
		return data
	default:
		// media, relations, poly: nothing selected yet
		return nil
	}
}

func copyDefault(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyDefault(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyDefault(e)
		}
		return out
	case Ordered:
		out := make(map[string]any, len(t))
		for _, p := range t {
			out[p.Key] = copyDefault(p.Value)
		}
		return out
	default:
		return v
	}
}
