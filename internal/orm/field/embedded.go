package field

import (
	"fmt"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/tracking"
)

// Embedded holds a to-one relation loaded as a document of the related
// resource. Only the identifier goes over the wire, so the relation is
// updated exactly when it points at another document.
type Embedded struct {
	composite
	value   map[string]any
	memo    map[string]any
	related *schema.Resource
}

// ID returns the identifier of the related document, or "" when unset
func (e *Embedded) ID() string { return idOf(e.value) }

// Related returns the schema of the related resource, if known
func (e *Embedded) Related() *schema.Resource { return e.related }

// Value returns the related document as a raw map, or nil
func (e *Embedded) Value() any {
	if e.value == nil {
		return nil
	}
	return tracking.DeepCopyMap(e.value)
}

// Memo returns the committed related document
func (e *Embedded) Memo() any {
	if e.memo == nil {
		return nil
	}
	return tracking.DeepCopyMap(e.memo)
}

// Child returns the related document's field with the given name
func (e *Embedded) Child(name string) (Field, bool) {
	for _, f := range e.children {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// SetValue loads v, an identifier or a document, as the current value and
// the new baseline
func (e *Embedded) SetValue(v any) error {
	if v == nil {
		v = e.defaultValue()
	}
	doc, err := e.document(v)
	if err != nil {
		return err
	}
	if err := e.load(doc); err != nil {
		return err
	}
	e.memo = copyDoc(doc)
	return nil
}

// CloneValue returns an independent copy of an identifier or document,
// always in document form
func (e *Embedded) CloneValue(v any) (any, error) {
	doc, err := e.document(v)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return doc, nil
}

// document normalizes v to a copied document. A bare identifier becomes
// {"_id": id}.
func (e *Embedded) document(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return map[string]any{"_id": t}, nil
	case map[string]any:
		return tracking.DeepCopyMap(t), nil
	default:
		return nil, newTypeError(e.Path(), "objectid or document", v)
	}
}

// load points the relation at doc and rebuilds the related fields. The
// relation is left as it was when a field fails to build.
func (e *Embedded) load(doc map[string]any) error {
	var built []Field
	if doc != nil && e.def.Relation != nil && e.builder != nil && e.builder.schemas != nil {
		related := e.related
		if related == nil {
			res, err := e.builder.schemas.Get(e.def.Relation.Resource)
			if err != nil {
				return fmt.Errorf("%s: %w", e.label(), err)
			}
			related = res
		}
		for _, def := range related.Fields {
			f, err := e.builder.Build(def, doc[def.Name])
			if err != nil {
				return fmt.Errorf("%s: %w", joinPath(e.Path(), def.Name), err)
			}
			built = append(built, f)
		}
		e.related = related
	}

	e.clear()
	e.value = doc
	for _, f := range built {
		e.push(e, f)
	}
	return nil
}

// Replace implements Container
func (e *Embedded) Replace(old, nu Field) bool {
	return e.replace(e, old, nu)
}

// EnsurePoly implements Container. Related documents are closed.
func (e *Embedded) EnsurePoly() {}

// HasUpdated reports whether the relation points at another document
func (e *Embedded) HasUpdated() bool {
	return idOf(e.value) != idOf(e.memo)
}

// Validate requires a non-empty identifier once a document is set
func (e *Embedded) Validate() error {
	if e.value == nil {
		if e.opts.Required {
			return e.invalid(e.required())
		}
		return nil
	}
	if idOf(e.value) == "" {
		return e.invalid([]string{e.label() + ": non-empty ID required"})
	}
	return nil
}

// CleanedData returns the identifier of the related document
func (e *Embedded) CleanedData() (any, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.value == nil {
		return nil, nil
	}
	return e.value["_id"], nil
}

// SelfCommit makes the current relation the new baseline
func (e *Embedded) SelfCommit() {
	e.commitChildren()
	e.memo = copyDoc(e.value)
}

// SelfUpdate points the relation at update, an identifier, a document or
// another field, and optionally commits
func (e *Embedded) SelfUpdate(update any, commit bool) error {
	if f, ok := update.(Field); ok {
		update = f.Value()
	}
	doc, err := e.document(update)
	if err != nil {
		return err
	}
	if err := e.load(doc); err != nil {
		return err
	}
	if commit {
		e.SelfCommit()
	}
	return nil
}

// Reset restores the committed relation, leaving it unchanged if the
// baseline no longer resolves
func (e *Embedded) Reset() {
	if !e.HasUpdated() {
		return
	}
	_ = e.load(copyDoc(e.memo))
}

func copyDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return tracking.DeepCopyMap(doc)
}

func idOf(doc map[string]any) string {
	if doc == nil {
		return ""
	}
	switch id := doc["_id"].(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
