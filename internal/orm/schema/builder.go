// Package schema provides a builder that converts raw schema definitions into typed descriptors
package schema

import (
	"fmt"
	"math"
)

// Pair is one key/value entry of an ordered mapping
type Pair struct {
	Key   string
	Value any
}

// Ordered is a mapping that preserves the key order of its source document.
// The loader produces it so that fields keep their declaration order.
type Ordered []Pair

// Get returns the value stored under key
func (o Ordered) Get(key string) (any, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// pairs returns the entries of an Ordered or a plain map. Plain maps are
// iterated in lexical key order.
func pairs(v any) ([]Pair, bool) {
	switch m := v.(type) {
	case Ordered:
		return m, true
	case map[string]any:
		out := make([]Pair, 0, len(m))
		for _, k := range sortedKeys(m) {
			out = append(out, Pair{Key: k, Value: m[k]})
		}
		return out, true
	default:
		return nil, false
	}
}

func lookup(v any, key string) (any, bool) {
	switch m := v.(type) {
	case Ordered:
		return m.Get(key)
	case map[string]any:
		val, ok := m[key]
		return val, ok
	default:
		return nil, false
	}
}

func isMapping(v any) bool {
	_, ok := pairs(v)
	return ok
}

// Builder converts raw schema definitions (decoded JSON or YAML) into
// Resource and Field descriptors
type Builder struct {
	errors []*DefinitionError
}

// NewBuilder creates a new schema builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Errors returns the definition errors collected by the last build
func (b *Builder) Errors() []*DefinitionError {
	return b.errors
}

// BuildResource builds a resource schema from its raw definition. Two shapes
// are accepted: a bare field mapping, or a domain entry carrying the fields
// under "schema" next to scalar settings such as "item_title".
func (b *Builder) BuildResource(name string, raw any) (*Resource, error) {
	b.errors = nil

	entries, ok := pairs(raw)
	if !ok {
		return nil, &DefinitionError{Resource: name, Message: fmt.Sprintf("definition must be a mapping, got %T", raw)}
	}

	res := NewResource(name)
	fields := entries
	if isDomainEntry(entries) {
		inner, _ := lookup(raw, "schema")
		fields, _ = pairs(inner)
		if title, ok := lookup(raw, "item_title"); ok {
			res.ItemTitle = fmt.Sprint(title)
		}
	}

	for _, p := range fields {
		f := b.buildField(name, p.Key, p.Value)
		if f != nil {
			res.Fields = append(res.Fields, f)
		}
	}

	if err := joinDefinitionErrors(b.errors); err != nil {
		return nil, err
	}
	return res, nil
}

// BuildField builds a single field descriptor
func (b *Builder) BuildField(resource, name string, raw any) (*Field, error) {
	b.errors = nil
	f := b.buildField(resource, name, raw)
	if err := joinDefinitionErrors(b.errors); err != nil {
		return nil, err
	}
	return f, nil
}

func isDomainEntry(entries []Pair) bool {
	hasSchema := false
	for _, p := range entries {
		if p.Key == "schema" {
			if !isMapping(p.Value) {
				return false
			}
			hasSchema = true
			continue
		}
		if isMapping(p.Value) {
			return false
		}
	}
	return hasSchema
}

func (b *Builder) fail(resource, field, format string, args ...any) {
	b.errors = append(b.errors, &DefinitionError{
		Resource: resource,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (b *Builder) buildField(resource, name string, raw any) *Field {
	// "title: string" is shorthand for "title: {type: string}"
	if tag, ok := raw.(string); ok {
		raw = map[string]any{"type": tag}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if !isMapping(raw) {
		b.fail(resource, name, "definition must be a mapping, got %T", raw)
		return nil
	}

	f := &Field{Name: name}

	tag, _ := lookup(raw, "type")
	tagStr, _ := tag.(string)
	t, err := ParseType(tagStr)
	if err != nil {
		b.fail(resource, name, "%v", err)
		return nil
	}
	f.Type = t

	f.Required = boolOpt(raw, "required")
	f.Unique = boolOpt(raw, "unique")
	f.Nullable = boolOpt(raw, "nullable")
	f.ReadOnly = boolOpt(raw, "readonly")

	if n, ok, err := intOpt(raw, "minlength"); err != nil {
		b.fail(resource, name, "minlength: %v", err)
	} else if ok {
		f.MinLength = &n
	}
	if n, ok, err := intOpt(raw, "maxlength"); err != nil {
		b.fail(resource, name, "maxlength: %v", err)
	} else if ok {
		f.MaxLength = &n
	}

	if allowed, ok := lookup(raw, "allowed"); ok {
		list, isList := allowed.([]any)
		if !isList {
			b.fail(resource, name, "allowed must be a list, got %T", allowed)
		} else {
			f.Allowed = list
		}
	}
	if def, ok := lookup(raw, "default"); ok {
		f.Default = def
	}

	if rel, ok := lookup(raw, "data_relation"); ok {
		f.Relation = b.buildRelation(resource, name, rel)
	}

	if sub, ok := lookup(raw, "schema"); ok {
		switch f.Type {
		case TypeList:
			f.Items = b.buildField(resource, name+".item", sub)
			if f.Items != nil {
				f.Items.Name = ""
			}
		case TypeDict, TypeEmbedded:
			entries, isMap := pairs(sub)
			if !isMap {
				b.fail(resource, name, "dict schema must be a mapping, got %T", sub)
				break
			}
			for _, p := range entries {
				if c := b.buildField(resource, name+"."+p.Key, p.Value); c != nil {
					c.Name = p.Key
					f.Fields = append(f.Fields, c)
				}
			}
		default:
			b.fail(resource, name, "type %s does not take a sub-schema", f.Type)
		}
	}

	return f
}

func (b *Builder) buildRelation(resource, name string, raw any) *Relation {
	if !isMapping(raw) {
		b.fail(resource, name, "data_relation must be a mapping, got %T", raw)
		return nil
	}
	target, _ := lookup(raw, "resource")
	targetName, _ := target.(string)
	if targetName == "" {
		b.fail(resource, name, "data_relation requires a resource")
		return nil
	}
	rel := &Relation{Resource: targetName, Field: "_id", Embeddable: boolOpt(raw, "embeddable")}
	if field, ok := lookup(raw, "field"); ok {
		if s, ok := field.(string); ok && s != "" {
			rel.Field = s
		}
	}
	return rel
}

func boolOpt(raw any, key string) bool {
	v, ok := lookup(raw, key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func intOpt(raw any, key string) (int, bool, error) {
	v, ok := lookup(raw, key)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case uint64:
		return int(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false, fmt.Errorf("expected an integer, got %v", n)
		}
		return int(n), true, nil
	default:
		return 0, false, fmt.Errorf("expected an integer, got %T", v)
	}
}
