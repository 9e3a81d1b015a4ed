// Package tracking provides deep copies of raw payload values and change
// tracking between a committed baseline payload and the current one.
package tracking

import (
	"reflect"
	"sort"
	"sync"
	"time"
)

// FieldChange represents a change to a single top-level field
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// ChangeTracker tracks field changes of a resource payload
type ChangeTracker struct {
	mu       sync.RWMutex
	original map[string]any
	current  map[string]any
	changes  map[string]*FieldChange
}

// NewChangeTracker creates a new change tracker
// original: the baseline last known to match the backend
// current: the current state with modifications
func NewChangeTracker(original, current map[string]any) *ChangeTracker {
	ct := &ChangeTracker{
		original: DeepCopyMap(original),
		current:  DeepCopyMap(current),
		changes:  make(map[string]*FieldChange),
	}
	ct.computeChanges()
	return ct
}

// DeepCopyMap creates a deep copy of a payload map
func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = DeepCopy(v)
	}
	return result
}

// DeepCopy creates a deep copy of a raw payload value. Maps and slices are
// copied recursively; everything else is returned as-is since scalars and
// structs are copied by value.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return DeepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Slice:
		if val.IsNil() {
			return v
		}
		out := reflect.MakeSlice(val.Type(), val.Len(), val.Len())
		for i := 0; i < val.Len(); i++ {
			out.Index(i).Set(copyAs(val.Type().Elem(), val.Index(i)))
		}
		return out.Interface()
	case reflect.Map:
		if val.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(val.Type(), val.Len())
		for _, key := range val.MapKeys() {
			out.SetMapIndex(key, copyAs(val.Type().Elem(), val.MapIndex(key)))
		}
		return out.Interface()
	default:
		return v
	}
}

func copyAs(typ reflect.Type, v reflect.Value) reflect.Value {
	c := DeepCopy(v.Interface())
	if c == nil {
		return reflect.Zero(typ)
	}
	return reflect.ValueOf(c).Convert(typ)
}

func (ct *ChangeTracker) computeChanges() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	for field, newValue := range ct.current {
		oldValue, hadOldValue := ct.original[field]
		if !hadOldValue || !Equal(oldValue, newValue) {
			ct.changes[field] = &FieldChange{Field: field, OldValue: oldValue, NewValue: newValue}
		}
	}

	for field, oldValue := range ct.original {
		if _, exists := ct.current[field]; !exists {
			ct.changes[field] = &FieldChange{Field: field, OldValue: oldValue, NewValue: nil}
		}
	}
}

// Equal compares two payload values. Instants compare with time.Time.Equal.
func Equal(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// Changed returns true if the specified field has changed
func (ct *ChangeTracker) Changed(field string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the names of all changed fields in lexical order
func (ct *ChangeTracker) ChangedFields() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// GetChange returns the FieldChange for a specific field, or nil if unchanged
func (ct *ChangeTracker) GetChange(field string) *FieldChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.changes[field]
}

// Changes returns all changes ordered by field name
func (ct *ChangeTracker) Changes() []FieldChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]FieldChange, 0, len(ct.changes))
	for _, c := range ct.changes {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Field < result[j].Field })
	return result
}

// HasChanges returns true if any fields have changed
func (ct *ChangeTracker) HasChanges() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.changes) > 0
}

// Reset makes the current state the new baseline.
// This should be called after a successful save operation
func (ct *ChangeTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.original = DeepCopyMap(ct.current)
	ct.changes = make(map[string]*FieldChange)
}

// SetFieldValue updates a field value and recomputes its change status
func (ct *ChangeTracker) SetFieldValue(field string, value any) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	value = DeepCopy(value)
	ct.current[field] = value

	oldValue, hadOldValue := ct.original[field]
	if !hadOldValue || !Equal(oldValue, value) {
		ct.changes[field] = &FieldChange{Field: field, OldValue: oldValue, NewValue: value}
	} else {
		delete(ct.changes, field)
	}
}

// GetChangedData returns a map of only the changed fields with their new values
func (ct *ChangeTracker) GetChangedData() map[string]any {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make(map[string]any, len(ct.changes))
	for field, change := range ct.changes {
		result[field] = change.NewValue
	}
	return result
}
