// Package schema provides type definitions for apy's REST resource schemas.
// A schema describes the fields of one backend resource (Eve-style domain
// definitions): their type tags, nesting, validation options and relations.
package schema

import (
	"sort"
)

// Type is a field type tag. The set of tags is closed; see ParseType.
type Type string

const (
	TypeString     Type = "string"
	TypeInteger    Type = "integer"
	TypeFloat      Type = "float"
	TypeNumber     Type = "number"
	TypeBoolean    Type = "boolean"
	TypeDatetime   Type = "datetime"
	TypePoint      Type = "point"
	TypeMedia      Type = "media"
	TypeObjectID   Type = "objectid"
	TypeList       Type = "list"
	TypeDict       Type = "dict"
	TypeEmbedded   Type = "embedded"
	TypePoly       Type = "poly"
	TypeResource   Type = "resource"
	TypeCollection Type = "collection"
)

var knownTypes = map[Type]bool{
	TypeString:     true,
	TypeInteger:    true,
	TypeFloat:      true,
	TypeNumber:     true,
	TypeBoolean:    true,
	TypeDatetime:   true,
	TypePoint:      true,
	TypeMedia:      true,
	TypeObjectID:   true,
	TypeList:       true,
	TypeDict:       true,
	TypeEmbedded:   true,
	TypePoly:       true,
	TypeResource:   true,
	TypeCollection: true,
}

// String returns the tag as written in schema files
func (t Type) String() string {
	return string(t)
}

// ParseType converts a tag to a Type. An empty tag means poly.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypePoly, nil
	}
	t := Type(s)
	if !knownTypes[t] {
		return "", &UnknownTypeError{Kind: "field type", Name: s}
	}
	return t, nil
}

// IsNumeric reports whether the tag is one of the number aliases
func (t Type) IsNumeric() bool {
	return t == TypeNumber || t == TypeInteger || t == TypeFloat
}

// IsComposite reports whether fields of this type own children
func (t Type) IsComposite() bool {
	switch t {
	case TypeList, TypeDict, TypeEmbedded, TypeResource, TypeCollection:
		return true
	default:
		return false
	}
}

// Relation describes a data_relation to another resource
type Relation struct {
	Resource   string
	Field      string
	Embeddable bool
}

// Field describes one field of a resource schema
type Field struct {
	Name      string
	Type      Type
	Required  bool
	Unique    bool
	Nullable  bool
	ReadOnly  bool
	MinLength *int
	MaxLength *int
	Allowed   []any
	Default   any

	// Items is the item schema of a list. Nil means untyped items.
	Items *Field

	// Fields is the ordered sub-schema of a dict. Empty means an open dict.
	Fields []*Field

	Relation *Relation
}

// IsEmbedded reports whether the field is a to-one relation that should be
// loaded as an embedded document
func (f *Field) IsEmbedded() bool {
	if f.Type == TypeEmbedded {
		return true
	}
	return f.Type == TypeObjectID && f.Relation != nil && f.Relation.Embeddable
}

// IsOpen reports whether a composite field accepts entries of any type
func (f *Field) IsOpen() bool {
	switch f.Type {
	case TypeList:
		return f.Items == nil || f.Items.Type == TypePoly
	case TypeDict:
		return len(f.Fields) == 0
	case TypePoly:
		return true
	default:
		return false
	}
}

// Child returns the sub-schema entry with the given name
func (f *Field) Child(name string) (*Field, bool) {
	for _, c := range f.Fields {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Resource is the complete schema of one backend resource
type Resource struct {
	Name      string
	ItemTitle string
	Fields    []*Field
}

// NewResource creates an empty resource schema
func NewResource(name string) *Resource {
	return &Resource{Name: name}
}

// Field returns the field with the given name
func (r *Resource) Field(name string) (*Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// HasField returns true if the resource has a field with the given name
func (r *Resource) HasField(name string) bool {
	_, ok := r.Field(name)
	return ok
}

// HasMedia reports whether any field, at any depth, holds media. Payloads of
// such resources carry file content.
func (r *Resource) HasMedia() bool {
	for _, f := range r.Fields {
		if hasMedia(f) {
			return true
		}
	}
	return false
}

func hasMedia(f *Field) bool {
	if f.Type == TypeMedia {
		return true
	}
	if f.Items != nil && hasMedia(f.Items) {
		return true
	}
	for _, c := range f.Fields {
		if hasMedia(c) {
			return true
		}
	}
	return false
}

// Relations returns every relation declared by the resource, keyed by the
// dotted path of the declaring field
func (r *Resource) Relations() map[string]*Relation {
	out := make(map[string]*Relation)
	var walk func(prefix string, f *Field)
	walk = func(prefix string, f *Field) {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if f.Relation != nil {
			out[path] = f.Relation
		}
		if f.Items != nil {
			walk(path, f.Items)
		}
		for _, c := range f.Fields {
			walk(path, c)
		}
	}
	for _, f := range r.Fields {
		walk("", f)
	}
	return out
}

// AsField returns the resource as a dict field descriptor
func (r *Resource) AsField() *Field {
	return &Field{Name: r.Name, Type: TypeDict, Fields: r.Fields}
}

// sortedKeys returns the keys of m in lexical order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
