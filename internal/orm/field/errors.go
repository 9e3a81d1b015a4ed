package field

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnhandledType is returned when a value cannot be represented by a field type
	ErrUnhandledType = errors.New("unhandled type")

	// ErrAlreadyResolved is returned when a poly field that already morphed is asked to morph again
	ErrAlreadyResolved = errors.New("poly field is already resolved")
)

// ValidationError reports a field value that does not match its expected
// shape or options. Composites aggregate the messages of all failing
// children into one ValidationError.
type ValidationError struct {
	Field    string
	Expected string
	Actual   string
	Messages []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	msgs := e.messages()
	if len(msgs) == 1 {
		return "validation failed: " + msgs[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *ValidationError) messages() []string {
	if len(e.Messages) > 0 {
		return e.Messages
	}
	if e.Expected != "" {
		return []string{fmt.Sprintf("%s: expected %s, got %s", e.label(), e.Expected, e.Actual)}
	}
	return []string{e.label() + ": invalid value"}
}

func (e *ValidationError) label() string {
	if e.Field == "" {
		return "value"
	}
	return e.Field
}

// newTypeError builds the error for a value of the wrong Go type
func newTypeError(path, expected string, got any) *ValidationError {
	return &ValidationError{Field: path, Expected: expected, Actual: typeName(got)}
}

// aggregate joins child failures into one ValidationError. Errors other than
// ValidationError are returned as-is since they are not about the value.
func aggregate(path string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var msgs []string
	for _, err := range errs {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		msgs = append(msgs, ve.messages()...)
	}
	return &ValidationError{Field: path, Messages: msgs}
}

// IsValidation returns true if err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "dict"
	default:
		return fmt.Sprintf("%T", v)
	}
}
