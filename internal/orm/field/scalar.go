package field

import (
	"encoding/json"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

// kind supplies the per-type behaviour of a scalar field
type kind[T any] interface {
	// convert coerces a raw value; nil yields the type's zero value
	convert(f *base, v any) (T, error)
	copy(v T) T
	equal(a, b T) bool
	validate(f *base, v T) error
	clean(f *base, v T) (any, error)
}

// scalar is the value/memo core shared by all leaf fields
type scalar[T any, K kind[T]] struct {
	base
	value T
	memo  T
}

func (s *scalar[T, K]) ops() K {
	var k K
	return k
}

// Get returns the typed current value
func (s *scalar[T, K]) Get() T { return s.value }

// Set replaces the typed current value, leaving the memo untouched
func (s *scalar[T, K]) Set(v T) { s.value = v }

// Value returns the current value
func (s *scalar[T, K]) Value() any { return s.ops().copy(s.value) }

// Memo returns the baseline value
func (s *scalar[T, K]) Memo() any { return s.ops().copy(s.memo) }

// SetValue loads v as both the current value and the baseline. A nil v
// loads the field default.
func (s *scalar[T, K]) SetValue(v any) error {
	if v == nil {
		v = s.defaultValue()
	}
	memo, err := s.ops().convert(&s.base, v)
	if err != nil {
		return err
	}
	s.memo = memo
	s.value = s.ops().copy(memo)
	return nil
}

// CloneValue converts v to an independent copy of the field's value type
func (s *scalar[T, K]) CloneValue(v any) (any, error) {
	c, err := s.ops().convert(&s.base, v)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// HasUpdated reports whether the value differs from the baseline
func (s *scalar[T, K]) HasUpdated() bool {
	return !s.ops().equal(s.value, s.memo)
}

// Validate checks the current value against the field options
func (s *scalar[T, K]) Validate() error {
	return s.ops().validate(&s.base, s.value)
}

// CleanedData validates and returns the wire form of the value
func (s *scalar[T, K]) CleanedData() (any, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.ops().clean(&s.base, s.value)
}

// SelfCommit makes the current value the new baseline
func (s *scalar[T, K]) SelfCommit() {
	s.memo = s.ops().copy(s.value)
}

// SelfUpdate replaces the current value with update, which may be a raw
// value or another field, and optionally commits it
func (s *scalar[T, K]) SelfUpdate(update any, commit bool) error {
	if f, ok := update.(Field); ok {
		update = f.Value()
	}
	v, err := s.ops().convert(&s.base, update)
	if err != nil {
		return err
	}
	s.value = v
	if commit {
		s.SelfCommit()
	}
	return nil
}

// Reset restores the baseline
func (s *scalar[T, K]) Reset() {
	if s.HasUpdated() {
		s.value = s.ops().copy(s.memo)
	}
}

// String holds text. Non-embedded objectid fields are strings as well.
type String struct {
	scalar[string, stringKind]
}

type stringKind struct{}

func (stringKind) convert(f *base, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.RawMessage:
		return string(t), nil
	default:
		return "", newTypeError(f.Path(), "string", v)
	}
}

func (stringKind) copy(v string) string { return v }
func (stringKind) equal(a, b string) bool { return a == b }
func (stringKind) clean(_ *base, v string) (any, error) { return v, nil }

func (stringKind) validate(f *base, v string) error {
	if v == "" {
		if f.opts.Required {
			return f.invalid(f.required())
		}
		return nil
	}
	msgs := f.checkLength(utf8.RuneCountInString(v))
	msgs = append(msgs, f.checkAllowed(v)...)
	return f.invalid(msgs)
}

// Number holds integer, float and number fields as float64
type Number struct {
	scalar[float64, numberKind]
}

type numberKind struct{}

func (numberKind) convert(f *base, v any) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if n, ok := toFloat(v); ok {
		return n, nil
	}
	return 0, newTypeError(f.Path(), "number", v)
}

func (numberKind) copy(v float64) float64 { return v }

func (numberKind) equal(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func (numberKind) validate(f *base, v float64) error {
	var msgs []string
	if f.kind == schema.TypeInteger && v != math.Trunc(v) {
		msgs = append(msgs, f.label()+": expected an integer")
	}
	msgs = append(msgs, f.checkAllowed(v)...)
	return f.invalid(msgs)
}

func (numberKind) clean(f *base, v float64) (any, error) {
	if f.kind == schema.TypeInteger {
		return int64(v), nil
	}
	return v, nil
}

// Boolean holds a flag
type Boolean struct {
	scalar[bool, boolKind]
}

type boolKind struct{}

func (boolKind) convert(f *base, v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	default:
		return false, newTypeError(f.Path(), "boolean", v)
	}
}

func (boolKind) copy(v bool) bool { return v }
func (boolKind) equal(a, b bool) bool { return a == b }
func (boolKind) validate(*base, bool) error { return nil }
func (boolKind) clean(_ *base, v bool) (any, error) { return v, nil }

// toFloat converts any Go numeric kind or json.Number to float64
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	case bool, string, nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
