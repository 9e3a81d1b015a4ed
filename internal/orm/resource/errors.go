package resource

import (
	"errors"
	"fmt"
	"strings"
)

// MissingDependencyError is returned when an operation needs a collaborator
// the resource was created without
type MissingDependencyError struct {
	Resource   string
	Dependency string
}

// Error implements the error interface
func (e *MissingDependencyError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("resource: missing %s", e.Dependency)
	}
	return fmt.Sprintf("resource %s: missing %s", e.Resource, e.Dependency)
}

// IsMissingDependency returns true if err is a MissingDependencyError
func IsMissingDependency(err error) bool {
	var mde *MissingDependencyError
	return errors.As(err, &mde)
}

// BatchError collects the failures of a collection-wide operation. The
// operation is not atomic: resources absent from Errors succeeded.
type BatchError struct {
	Total  int
	Errors []error
}

// Error implements the error interface
func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d of %d resources failed: %s", len(e.Errors), e.Total, strings.Join(msgs, "; "))
}

// Unwrap exposes every failure to errors.Is and errors.As
func (e *BatchError) Unwrap() []error {
	return e.Errors
}
