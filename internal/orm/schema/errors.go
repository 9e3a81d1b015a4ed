package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSchema is matched by lookups of unregistered resource names
var ErrUnknownSchema = errors.New("unknown schema")

// UnknownTypeError is returned for unregistered type tags and schema names
type UnknownTypeError struct {
	Kind string // "field type" or "schema"
	Name string
}

// Error implements the error interface
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.Name)
}

// Is lets errors.Is(err, ErrUnknownSchema) match schema lookups
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownSchema && e.Kind == "schema"
}

// IsUnknownType returns true if err is an UnknownTypeError
func IsUnknownType(err error) bool {
	var ute *UnknownTypeError
	return errors.As(err, &ute)
}

// DefinitionError represents a malformed schema definition
type DefinitionError struct {
	Resource string
	Field    string
	Message  string
}

// Error implements the error interface
func (e *DefinitionError) Error() string {
	var b strings.Builder
	if e.Resource != "" {
		b.WriteString(e.Resource)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func joinDefinitionErrors(errs []*DefinitionError) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("schema validation failed with %d errors:\n%s", len(errs), strings.Join(msgs, "\n"))
}
