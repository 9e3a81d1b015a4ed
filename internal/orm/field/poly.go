package field

import (
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/tracking"
)

// Poly is a field whose type is not known yet. It holds a raw value until
// SetType builds the concrete field, which takes the Poly's slot in its
// parent. From then on every method delegates to the resolved field.
//
// A pending Poly is the trailing placeholder of an open composite, the slot
// where a new entry of any type can be created. Pending slots are ignored
// by counts, dirty checks and payloads.
type Poly struct {
	base
	value    any
	memo     any
	pending  bool
	resolved Field
}

func newPoly(b *Builder, name string, value any) *Poly {
	p := &Poly{base: base{
		name:    name,
		kind:    schema.TypePoly,
		def:     &schema.Field{Name: name, Type: schema.TypePoly},
		builder: b,
	}}
	p.value = tracking.DeepCopy(value)
	p.memo = tracking.DeepCopy(value)
	return p
}

// IsPending reports whether the Poly is an unresolved placeholder slot
func (p *Poly) IsPending() bool { return p.pending && p.resolved == nil }

// Resolved returns the concrete field once SetType succeeded
func (p *Poly) Resolved() Field { return p.resolved }

// Rename sets the key a pending dict slot will be stored under
func (p *Poly) Rename(name string) {
	p.name = name
	p.def.Name = name
}

// SetType morphs the Poly into a field of type t. related names the target
// resource of a relation type and is ignored otherwise. The new field
// replaces the Poly in its parent, and the parent gets a fresh pending slot.
func (p *Poly) SetType(t schema.Type, related string) (Field, error) {
	if p.resolved != nil {
		return nil, ErrAlreadyResolved
	}
	if _, ok := factories[t]; !ok {
		return nil, &schema.UnknownTypeError{Kind: "field type", Name: string(t)}
	}

	def := &schema.Field{Name: p.name, Type: t}
	if related != "" && (t == schema.TypeObjectID || t == schema.TypeEmbedded) {
		def.Relation = &schema.Relation{Resource: related, Field: "_id", Embeddable: true}
	}

	f, err := p.morph(def)
	if err != nil {
		return nil, err
	}
	f.core().polyMorph = true
	if c, ok := f.(Container); ok {
		c.EnsurePoly()
	}

	p.resolved = f
	p.pending = false
	if parent := p.parent; parent != nil {
		parent.Replace(p, f)
		parent.EnsurePoly()
	}
	return f, nil
}

// morph builds the concrete field from the baseline, then applies the
// current value so pending edits stay visible as updates
func (p *Poly) morph(def *schema.Field) (Field, error) {
	if tracking.Equal(p.value, p.memo) {
		return p.builder.Build(def, p.value)
	}
	f, err := p.builder.Build(def, p.memo)
	if err != nil {
		return p.builder.Build(def, p.value)
	}
	if err := f.SelfUpdate(p.value, false); err != nil {
		return nil, err
	}
	return f, nil
}

// Type returns the resolved type, or poly
func (p *Poly) Type() schema.Type {
	if p.resolved != nil {
		return p.resolved.Type()
	}
	return schema.TypePoly
}

// Set replaces the raw value, leaving the baseline untouched. Once
// resolved the value must suit the concrete field.
func (p *Poly) Set(v any) error {
	if p.resolved != nil {
		return p.resolved.SelfUpdate(v, false)
	}
	p.value = tracking.DeepCopy(v)
	return nil
}

func (p *Poly) Value() any {
	if p.resolved != nil {
		return p.resolved.Value()
	}
	return tracking.DeepCopy(p.value)
}

func (p *Poly) Memo() any {
	if p.resolved != nil {
		return p.resolved.Memo()
	}
	return tracking.DeepCopy(p.memo)
}

func (p *Poly) SetValue(v any) error {
	if p.resolved != nil {
		return p.resolved.SetValue(v)
	}
	p.value = tracking.DeepCopy(v)
	p.memo = tracking.DeepCopy(v)
	return nil
}

func (p *Poly) CloneValue(v any) (any, error) {
	if p.resolved != nil {
		return p.resolved.CloneValue(v)
	}
	return tracking.DeepCopy(v), nil
}

func (p *Poly) HasUpdated() bool {
	if p.resolved != nil {
		return p.resolved.HasUpdated()
	}
	return !tracking.Equal(p.value, p.memo)
}

// Validate accepts any raw value
func (p *Poly) Validate() error {
	if p.resolved != nil {
		return p.resolved.Validate()
	}
	return nil
}

func (p *Poly) CleanedData() (any, error) {
	if p.resolved != nil {
		return p.resolved.CleanedData()
	}
	return tracking.DeepCopy(p.value), nil
}

func (p *Poly) SelfCommit() {
	if p.resolved != nil {
		p.resolved.SelfCommit()
		return
	}
	p.memo = tracking.DeepCopy(p.value)
}

func (p *Poly) SelfUpdate(update any, commit bool) error {
	if p.resolved != nil {
		return p.resolved.SelfUpdate(update, commit)
	}
	if f, ok := update.(Field); ok {
		update = f.Value()
	}
	p.value = tracking.DeepCopy(update)
	if commit {
		p.SelfCommit()
	}
	return nil
}

func (p *Poly) Reset() {
	if p.resolved != nil {
		p.resolved.Reset()
		return
	}
	p.value = tracking.DeepCopy(p.memo)
}

func (p *Poly) SetOptions(def *schema.Field) {
	if p.resolved != nil {
		p.resolved.SetOptions(def)
		return
	}
	p.base.SetOptions(def)
}

func (p *Poly) Options() Options {
	if p.resolved != nil {
		return p.resolved.Options()
	}
	return p.opts
}
