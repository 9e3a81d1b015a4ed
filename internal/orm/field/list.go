package field

import (
	"fmt"
	"math"
	"strconv"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/tracking"
)

// List holds an ordered sequence of fields. Its baseline is the effective
// child count: a list is updated when entries were added or removed, or
// when any entry was updated.
type List struct {
	composite
	memo      int
	memoValue []any
	// replaced is set when an entry was swapped for one of another type
	replaced bool
}

// Value returns the current entries as raw values
func (l *List) Value() any {
	out := make([]any, 0, len(l.children))
	for _, f := range l.effective() {
		out = append(out, f.Value())
	}
	return out
}

// Memo returns the child count at the last commit
func (l *List) Memo() any { return l.memo }

// MemoValue returns the entries at the last commit
func (l *List) MemoValue() []any { return copyList(l.memoValue) }

// Child returns the entry at index i
func (l *List) Child(i int) (Field, bool) {
	if i < 0 || i >= len(l.children) {
		return nil, false
	}
	return l.children[i], true
}

// SetValue loads v as the list content and the new baseline
func (l *List) SetValue(v any) error {
	if v == nil {
		v = l.defaultValue()
	}
	items, err := l.items(v)
	if err != nil {
		return err
	}
	if err := l.load(items); err != nil {
		return err
	}
	l.memo = l.Len()
	l.memoValue = l.Value().([]any)
	l.replaced = false
	return nil
}

// CloneValue returns an independent copy of a raw list
func (l *List) CloneValue(v any) (any, error) {
	items, err := l.items(v)
	if err != nil {
		return nil, err
	}
	return tracking.DeepCopy(items), nil
}

func (l *List) items(v any) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return t, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	default:
		return nil, newTypeError(l.Path(), "list", v)
	}
}

// load rebuilds the children from raw items without touching the
// baseline. The entries are left as they were when an item fails to build.
func (l *List) load(items []any) error {
	built := make([]Field, 0, len(items))
	for i, item := range items {
		f, err := l.buildItem(strconv.Itoa(i), item)
		if err != nil {
			return err
		}
		built = append(built, f)
	}
	l.clear()
	for _, f := range built {
		l.push(l, f)
	}
	l.EnsurePoly()
	return nil
}

// buildItem builds an entry from the item schema, or by inference for
// open lists
func (l *List) buildItem(name string, v any) (Field, error) {
	var (
		f   Field
		err error
	)
	if l.def.IsOpen() {
		f, err = l.builder.infer(name, v)
	} else {
		item := *l.def.Items
		item.Name = name
		f, err = l.builder.Build(&item, v)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", joinPath(l.Path(), name), err)
	}
	return f, nil
}

// AppendValue builds a new entry from a raw value and appends it
func (l *List) AppendValue(v any) (Field, error) {
	f, err := l.buildItem(strconv.Itoa(l.Len()), v)
	if err != nil {
		return nil, err
	}
	l.Append(f)
	return f, nil
}

// Append adds an entry before the pending slot
func (l *List) Append(f Field) {
	l.push(l, f)
	l.renumber()
}

// Remove detaches an entry
func (l *List) Remove(f Field) bool {
	if !l.remove(f) {
		return false
	}
	l.renumber()
	return true
}

// RemoveAt detaches the entry at index i
func (l *List) RemoveAt(i int) bool {
	f, ok := l.Child(i)
	return ok && l.Remove(f)
}

// Replace implements Container
func (l *List) Replace(old, nu Field) bool {
	if !l.replace(l, old, nu) {
		return false
	}
	l.renumber()
	return true
}

// EnsurePoly implements Container
func (l *List) EnsurePoly() {
	if l.def.IsOpen() {
		l.ensurePoly(l, "")
	}
}

func (l *List) renumber() {
	i := 0
	for _, f := range l.children {
		if isPending(f) {
			f.core().name = ""
			continue
		}
		f.core().name = strconv.Itoa(i)
		i++
	}
}

// SetSelection replaces the entries with values while keeping the baseline,
// so the list reports the difference as an update. Entries present on both
// sides are updated in place. In an open list an entry whose value changes
// type is swapped for a new one. Values are checked before anything
// changes, so a rejected value leaves the entries untouched.
func (l *List) SetSelection(values []any) error {
	current := l.effective()
	swaps := make(map[int]Field)
	for i := 0; i < len(values) && i < len(current); i++ {
		_, err := current[i].CloneValue(values[i])
		if err == nil {
			continue
		}
		if !l.def.IsOpen() {
			return fmt.Errorf("%s: %w", joinPath(l.Path(), current[i].Name()), err)
		}
		f, err := l.buildItem(current[i].Name(), values[i])
		if err != nil {
			return err
		}
		swaps[i] = f
	}
	var extra []Field
	for i := len(current); i < len(values); i++ {
		f, err := l.buildItem(strconv.Itoa(i), values[i])
		if err != nil {
			return err
		}
		extra = append(extra, f)
	}

	for i := 0; i < len(values) && i < len(current); i++ {
		if f, ok := swaps[i]; ok {
			l.Replace(current[i], f)
			l.replaced = true
			continue
		}
		if err := current[i].SelfUpdate(values[i], false); err != nil {
			return err
		}
	}
	for _, f := range extra {
		l.Append(f)
	}
	for i := len(values); i < len(current); i++ {
		l.Remove(current[i])
	}
	return nil
}

// HasUpdated reports whether entries were added, removed, swapped or
// updated
func (l *List) HasUpdated() bool {
	return l.replaced || l.Len() != l.memo || l.childrenUpdated()
}

// Validate checks every entry and the list options
func (l *List) Validate() error {
	n := l.Len()
	var msgs []string
	if l.opts.Required && n == 0 {
		msgs = append(msgs, l.required()...)
	}
	msgs = append(msgs, l.checkLength(n)...)
	errs := l.validateChildren()
	if len(msgs) > 0 {
		errs = append([]error{l.invalid(msgs)}, errs...)
	}
	return aggregate(l.Path(), errs)
}

// CleanedData returns the entries' wire forms. A list restricted to an
// allowed set is a selection and goes out as selected. Otherwise empty
// strings, nulls and NaN entries are dropped while false and 0 are kept.
func (l *List) CleanedData() (any, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(l.opts.Allowed) > 0 && l.Len() > 0 {
		return l.Value(), nil
	}
	out := make([]any, 0, len(l.children))
	for _, f := range l.effective() {
		c, err := f.CleanedData()
		if err != nil {
			return nil, err
		}
		if blank(c) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func copyList(v []any) []any {
	if v == nil {
		return []any{}
	}
	return tracking.DeepCopy(v).([]any)
}

func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}

// SelfCommit makes the current entries the new baseline
func (l *List) SelfCommit() {
	l.commitChildren()
	l.memo = l.Len()
	l.memoValue = l.Value().([]any)
	l.replaced = false
}

// SelfUpdate replaces the entries with update, a raw list or another field,
// and optionally commits. Without commit the baseline is kept, so the list
// reports the edit as an update.
func (l *List) SelfUpdate(update any, commit bool) error {
	if f, ok := update.(Field); ok {
		update = f.Value()
	}
	items, err := l.items(update)
	if err != nil {
		return err
	}
	if err := l.SetSelection(items); err != nil {
		return err
	}
	if commit {
		l.SelfCommit()
	}
	return nil
}

// Reset restores the committed entries. The baseline was built once
// already; if it no longer builds the entries are left unchanged.
func (l *List) Reset() {
	if !l.HasUpdated() {
		return
	}
	_ = l.SetValue(copyList(l.memoValue))
}
