package field

import (
	"fmt"
	"sort"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/tracking"
)

// Nested holds a dict: the declared sub-fields in schema order, or for an
// open dict one inferred child per key plus a pending slot for new keys.
type Nested struct {
	composite
	memo      int
	memoValue map[string]any
}

// Value returns the current content as a raw map
func (n *Nested) Value() any {
	out := make(map[string]any, len(n.children))
	for _, f := range n.effective() {
		out[f.Name()] = f.Value()
	}
	return out
}

// Memo returns the child count at the last commit
func (n *Nested) Memo() any { return n.memo }

// MemoValue returns the content at the last commit
func (n *Nested) MemoValue() map[string]any { return tracking.DeepCopyMap(n.memoValue) }

// Child returns the sub-field with the given name
func (n *Nested) Child(name string) (Field, bool) {
	for _, f := range n.children {
		if f.Name() == name && !isPending(f) {
			return f, true
		}
	}
	return nil, false
}

// Keys returns the sub-field names in order
func (n *Nested) Keys() []string {
	fields := n.effective()
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Name()
	}
	return keys
}

// SetValue loads v as the content and the new baseline
func (n *Nested) SetValue(v any) error {
	if v == nil {
		v = n.defaultValue()
	}
	m, err := n.mapping(v)
	if err != nil {
		return err
	}
	if err := n.load(m); err != nil {
		return err
	}
	n.memo = n.Len()
	n.memoValue = n.Value().(map[string]any)
	return nil
}

// CloneValue returns an independent copy of a raw map
func (n *Nested) CloneValue(v any) (any, error) {
	m, err := n.mapping(v)
	if err != nil {
		return nil, err
	}
	return tracking.DeepCopyMap(m), nil
}

func (n *Nested) mapping(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return t, nil
	default:
		return nil, newTypeError(n.Path(), "dict", v)
	}
}

// load rebuilds the sub-fields from m. They are left as they were when one
// fails to build.
func (n *Nested) load(m map[string]any) error {
	var built []Field
	if !n.def.IsOpen() {
		for _, def := range n.def.Fields {
			f, err := n.builder.Build(def, m[def.Name])
			if err != nil {
				return fmt.Errorf("%s: %w", joinPath(n.Path(), def.Name), err)
			}
			built = append(built, f)
		}
	} else {
		for _, k := range sortedKeys(m) {
			f, err := n.builder.infer(k, m[k])
			if err != nil {
				return fmt.Errorf("%s: %w", joinPath(n.Path(), k), err)
			}
			built = append(built, f)
		}
	}

	n.clear()
	for _, f := range built {
		n.push(n, f)
	}
	n.EnsurePoly()
	return nil
}

// Set updates the sub-field name with a raw value. Open dicts grow a new
// inferred sub-field for unknown names.
func (n *Nested) Set(name string, v any) error {
	if f, ok := n.Child(name); ok {
		return f.SelfUpdate(v, false)
	}
	if !n.def.IsOpen() {
		return fmt.Errorf("%s: unknown field %q", n.label(), name)
	}
	f, err := n.builder.infer(name, v)
	if err != nil {
		return err
	}
	n.push(n, f)
	return nil
}

// Delete removes the sub-field name from an open dict
func (n *Nested) Delete(name string) bool {
	f, ok := n.Child(name)
	if !ok || !n.def.IsOpen() {
		return false
	}
	return n.remove(f)
}

// Replace implements Container
func (n *Nested) Replace(old, nu Field) bool {
	return n.replace(n, old, nu)
}

// EnsurePoly implements Container
func (n *Nested) EnsurePoly() {
	if n.def.IsOpen() {
		n.ensurePoly(n, "")
	}
}

// HasUpdated reports whether keys were added or removed, or any sub-field
// was updated
func (n *Nested) HasUpdated() bool {
	return n.Len() != n.memo || n.childrenUpdated()
}

// Validate checks every sub-field and reports all failures together
func (n *Nested) Validate() error {
	return aggregate(n.Path(), n.validateChildren())
}

// CleanedData returns the wire form of every sub-field
func (n *Nested) CleanedData() (any, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(n.children))
	for _, f := range n.effective() {
		if f.Name() == "" {
			continue
		}
		c, err := f.CleanedData()
		if err != nil {
			return nil, err
		}
		out[f.Name()] = c
	}
	return out, nil
}

// SelfCommit makes the current content the new baseline
func (n *Nested) SelfCommit() {
	n.commitChildren()
	n.memo = n.Len()
	n.memoValue = n.Value().(map[string]any)
}

// SelfUpdate merges update, a raw map or another field, into the content
// and optionally commits. Declared sub-fields absent from update keep their
// value.
func (n *Nested) SelfUpdate(update any, commit bool) error {
	if f, ok := update.(Field); ok {
		update = f.Value()
	}
	m, err := n.mapping(update)
	if err != nil {
		return err
	}
	for _, k := range sortedKeys(m) {
		if _, ok := n.Child(k); !ok && !n.def.IsOpen() {
			continue
		}
		if err := n.Set(k, m[k]); err != nil {
			return err
		}
	}
	if commit {
		n.SelfCommit()
	}
	return nil
}

// Reset restores the committed content, leaving it unchanged if the
// baseline no longer builds
func (n *Nested) Reset() {
	if !n.HasUpdated() {
		return
	}
	_ = n.SetValue(tracking.DeepCopyMap(n.memoValue))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
