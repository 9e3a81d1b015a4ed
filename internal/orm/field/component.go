// Package field implements the component tree that mirrors backend
// resources: scalar fields, composites (list, dict, embedded relation) and
// the poly field that adopts a concrete type once it is known.
//
// Every field keeps two independent copies of its value: the current value,
// which edits mutate, and the memo, the baseline last known to match the
// backend. HasUpdated compares the two, Reset copies the memo back and
// SelfCommit promotes the current value to the new baseline after a
// successful write. Composites aggregate these operations over their
// children.
//
// Fields are not safe for concurrent use.
package field

import (
	"fmt"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

// Component is any node of the data-binding tree
type Component interface {
	Name() string
	Type() schema.Type
	Parent() Container
	// Path is the dot-joined location of the component below its resource
	Path() string
}

// Container is a component that owns an ordered sequence of fields
type Container interface {
	Component
	Children() []Field
	// Replace swaps a child for another in the same slot
	Replace(old, nu Field) bool
	// EnsurePoly keeps exactly one trailing pending poly slot on open
	// composites and does nothing on closed ones
	EnsurePoly()
}

// Field is a value-holding component. The set of implementations is closed:
// String, Number, Boolean, Datetime, GeoPoint, Media, List, Nested,
// Embedded and Poly.
type Field interface {
	Component

	Schema() *schema.Field
	Options() Options
	SetOptions(def *schema.Field)

	Value() any
	Memo() any
	SetValue(v any) error
	CloneValue(v any) (any, error)

	HasUpdated() bool
	Validate() error
	CleanedData() (any, error)

	SelfCommit()
	SelfUpdate(update any, commit bool) error
	Reset()

	IsPolyMorph() bool

	core() *base
}

// Options holds the validation options copied from the schema
type Options struct {
	MinLength *int
	MaxLength *int
	Unique    bool
	Required  bool
	Allowed   []any
}

// base carries the state shared by every field
type base struct {
	name      string
	kind      schema.Type
	def       *schema.Field
	parent    Container
	opts      Options
	polyMorph bool
	builder   *Builder
}

func (b *base) core() *base { return b }

// Name returns the field name. List children are named by their index.
func (b *base) Name() string { return b.name }

// Type returns the type tag
func (b *base) Type() schema.Type { return b.kind }

// Parent returns the owning container, or nil for a root
func (b *base) Parent() Container { return b.parent }

// Schema returns the descriptor the field was built from
func (b *base) Schema() *schema.Field { return b.def }

// Options returns the validation options
func (b *base) Options() Options { return b.opts }

// IsPolyMorph reports whether the field was produced by a poly field morphing
func (b *base) IsPolyMorph() bool { return b.polyMorph }

// Path returns the dot-joined location of the field
func (b *base) Path() string {
	if b.parent == nil {
		return b.name
	}
	return joinPath(b.parent.Path(), b.name)
}

// SetOptions copies options from the schema. Options the schema leaves empty
// keep their previous value.
func (b *base) SetOptions(def *schema.Field) {
	if def == nil {
		return
	}
	if def.MinLength != nil {
		n := *def.MinLength
		b.opts.MinLength = &n
	}
	if def.MaxLength != nil {
		n := *def.MaxLength
		b.opts.MaxLength = &n
	}
	if def.Unique {
		b.opts.Unique = true
	}
	if def.Required {
		b.opts.Required = true
	}
	if len(def.Allowed) > 0 {
		b.opts.Allowed = append([]any(nil), def.Allowed...)
	}
}

func (b *base) defaultValue() any {
	if b.builder != nil {
		return b.builder.defaultValue(b.def)
	}
	return schema.DefaultValue(b.def)
}

// checkLength validates n against min/max length
func (b *base) checkLength(n int) []string {
	var msgs []string
	if b.opts.MinLength != nil && n < *b.opts.MinLength {
		msgs = append(msgs, fmt.Sprintf("%s: min length is %d, got %d", b.label(), *b.opts.MinLength, n))
	}
	if b.opts.MaxLength != nil && n > *b.opts.MaxLength {
		msgs = append(msgs, fmt.Sprintf("%s: max length is %d, got %d", b.label(), *b.opts.MaxLength, n))
	}
	return msgs
}

// checkAllowed validates v against the allowed set
func (b *base) checkAllowed(v any) []string {
	if len(b.opts.Allowed) == 0 {
		return nil
	}
	for _, a := range b.opts.Allowed {
		if sameValue(a, v) {
			return nil
		}
	}
	return []string{fmt.Sprintf("%s: value %v is not allowed", b.label(), v)}
}

func (b *base) required() []string {
	return []string{b.label() + ": required field is empty"}
}

func (b *base) label() string {
	if p := b.Path(); p != "" {
		return p
	}
	return "value"
}

func (b *base) invalid(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{Field: b.Path(), Messages: msgs}
}

func joinPath(parent, name string) string {
	switch {
	case parent == "":
		return name
	case name == "":
		return parent
	default:
		return parent + "." + name
	}
}

// sameValue compares allowed-set members with decoded values, treating all
// numeric kinds as float64
func sameValue(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}
