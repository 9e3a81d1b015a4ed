// Package schema provides validation for resource schemas
package schema

// SchemaValidator checks a resource schema for definitions the field layer
// cannot honor
type SchemaValidator struct {
	errors []*DefinitionError
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// ValidateStructural validates a single resource schema without cross-resource checks.
// Relation targets are checked by Registry.ValidateAll so that schemas may be
// registered in any order.
func (v *SchemaValidator) ValidateStructural(res *Resource) error {
	v.errors = nil

	if res.Name == "" {
		v.errors = append(v.errors, &DefinitionError{Message: "resource name is required"})
	}

	seen := make(map[string]bool, len(res.Fields))
	for _, f := range res.Fields {
		if seen[f.Name] {
			v.fail(res.Name, f.Name, "duplicate field")
		}
		seen[f.Name] = true
		v.validateField(res.Name, f.Name, f)
	}

	return joinDefinitionErrors(v.errors)
}

func (v *SchemaValidator) fail(resource, field, msg string) {
	v.errors = append(v.errors, &DefinitionError{Resource: resource, Field: field, Message: msg})
}

func (v *SchemaValidator) validateField(resource, path string, f *Field) {
	if f.MinLength != nil && *f.MinLength < 0 {
		v.fail(resource, path, "minlength must not be negative")
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		v.fail(resource, path, "minlength is greater than maxlength")
	}

	if f.Type == TypeEmbedded && f.Relation == nil {
		v.fail(resource, path, "embedded field requires a data_relation")
	}
	if f.Relation != nil && f.Type != TypeObjectID && f.Type != TypeEmbedded && f.Type != TypeList {
		v.fail(resource, path, "data_relation is only valid on objectid, embedded or list fields")
	}

	if f.Type == TypeString || f.Type == TypeObjectID {
		for _, a := range f.Allowed {
			if _, ok := a.(string); !ok {
				v.fail(resource, path, "allowed values of a string field must be strings")
				break
			}
		}
	}
	if f.Type == TypeBoolean && len(f.Allowed) > 0 {
		v.fail(resource, path, "allowed is not supported on boolean fields")
	}

	if f.Items != nil {
		v.validateField(resource, path+".item", f.Items)
	}
	seen := make(map[string]bool, len(f.Fields))
	for _, c := range f.Fields {
		if seen[c.Name] {
			v.fail(resource, path+"."+c.Name, "duplicate field")
		}
		seen[c.Name] = true
		v.validateField(resource, path+"."+c.Name, c)
	}
}
