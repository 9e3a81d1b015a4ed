package field

import (
	"time"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

// Schemas resolves related resources and field defaults
type Schemas interface {
	Get(name string) (*schema.Resource, error)
	DefaultValue(f *schema.Field) any
}

type factory func(b base) Field

// factories maps every concrete type tag to its constructor
var factories = map[schema.Type]factory{
	schema.TypeString:   func(b base) Field { return &String{scalar[string, stringKind]{base: b}} },
	schema.TypeObjectID: newObjectID,
	schema.TypeInteger:  newNumber,
	schema.TypeFloat:    newNumber,
	schema.TypeNumber:   newNumber,
	schema.TypeBoolean:  func(b base) Field { return &Boolean{scalar[bool, boolKind]{base: b}} },
	schema.TypeDatetime: func(b base) Field { return &Datetime{scalar[time.Time, datetimeKind]{base: b}} },
	schema.TypePoint:    func(b base) Field { return &GeoPoint{scalar[Point, pointKind]{base: b}} },
	schema.TypeMedia:    func(b base) Field { return &Media{scalar[MediaFile, mediaKind]{base: b}} },
	schema.TypeList:     func(b base) Field { return &List{composite: composite{base: b}} },
	schema.TypeDict:     func(b base) Field { return &Nested{composite: composite{base: b}} },
	schema.TypeEmbedded: func(b base) Field { return &Embedded{composite: composite{base: b}} },
}

func newNumber(b base) Field {
	return &Number{scalar[float64, numberKind]{base: b}}
}

// newObjectID builds an embedded relation for embeddable references and a
// plain identifier string otherwise
func newObjectID(b base) Field {
	if b.def.IsEmbedded() {
		return &Embedded{composite: composite{base: b}}
	}
	return &String{scalar[string, stringKind]{base: b}}
}

// Builder turns schema descriptors and raw values into fields
type Builder struct {
	schemas Schemas
}

// NewBuilder creates a builder. schemas may be nil, in which case embedded
// relations hold their document without children.
func NewBuilder(schemas Schemas) *Builder {
	return &Builder{schemas: schemas}
}

var defaultBuilder = NewBuilder(nil)

// Build creates the field described by def and loads value into it
func (b *Builder) Build(def *schema.Field, value any) (Field, error) {
	if b == nil {
		b = defaultBuilder
	}
	if def.Type == schema.TypePoly || def.Type == "" {
		p := newPoly(b, def.Name, value)
		p.SetOptions(def)
		return p, nil
	}

	mk, ok := factories[def.Type]
	if !ok {
		return nil, &schema.UnknownTypeError{Kind: "field type", Name: string(def.Type)}
	}
	f := mk(base{name: def.Name, kind: def.Type, def: def, builder: b})
	f.SetOptions(def)
	if err := f.SetValue(value); err != nil {
		return nil, err
	}
	return f, nil
}

// BuildResource builds the root dict of a resource document. parent is the
// owner of the root, typically the resource itself.
func (b *Builder) BuildResource(res *schema.Resource, data map[string]any, parent Container) (*Nested, error) {
	if b == nil {
		b = defaultBuilder
	}
	def := res.AsField()
	def.Name = ""
	n := &Nested{composite: composite{base: base{kind: schema.TypeDict, def: def, parent: parent, builder: b}}}
	if data == nil {
		data = map[string]any{}
	}
	if err := n.SetValue(data); err != nil {
		return nil, err
	}
	return n, nil
}

// Poly creates an unresolved field holding a raw value
func (b *Builder) Poly(name string, value any) *Poly {
	if b == nil {
		b = defaultBuilder
	}
	return newPoly(b, name, value)
}

// infer builds the child of an untyped container: a concrete field when the
// value's type is recognizable, a Poly otherwise
func (b *Builder) infer(name string, value any) (Field, error) {
	t, ok := InferType(value)
	if !ok {
		return b.Poly(name, value), nil
	}
	f, err := b.Build(&schema.Field{Name: name, Type: t}, value)
	if err != nil {
		return nil, err
	}
	f.core().polyMorph = true
	return f, nil
}

func (b *Builder) defaultValue(def *schema.Field) any {
	if b != nil && b.schemas != nil {
		return b.schemas.DefaultValue(def)
	}
	return schema.DefaultValue(def)
}
