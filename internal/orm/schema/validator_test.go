package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestValidateStructural(t *testing.T) {
	tests := []struct {
		name    string
		fields  []*Field
		wantErr string
	}{
		{
			name: "valid",
			fields: []*Field{
				{Name: "title", Type: TypeString, MinLength: intPtr(1), MaxLength: intPtr(80), Allowed: []any{"a", "b"}},
				{Name: "owner", Type: TypeObjectID, Relation: &Relation{Resource: "users"}},
				{Name: "author", Type: TypeEmbedded, Relation: &Relation{Resource: "users"}},
				{Name: "tags", Type: TypeList, Items: &Field{Type: TypeString}},
			},
		},
		{
			name:    "duplicate field",
			fields:  []*Field{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeInteger}},
			wantErr: "tasks.a: duplicate field",
		},
		{
			name:    "negative minlength",
			fields:  []*Field{{Name: "a", Type: TypeString, MinLength: intPtr(-1)}},
			wantErr: "minlength must not be negative",
		},
		{
			name:    "minlength above maxlength",
			fields:  []*Field{{Name: "a", Type: TypeString, MinLength: intPtr(5), MaxLength: intPtr(2)}},
			wantErr: "minlength is greater than maxlength",
		},
		{
			name:    "embedded without relation",
			fields:  []*Field{{Name: "a", Type: TypeEmbedded}},
			wantErr: "embedded field requires a data_relation",
		},
		{
			name:    "relation on a string",
			fields:  []*Field{{Name: "a", Type: TypeString, Relation: &Relation{Resource: "users"}}},
			wantErr: "data_relation is only valid",
		},
		{
			name:    "non string allowed",
			fields:  []*Field{{Name: "a", Type: TypeString, Allowed: []any{"x", 1}}},
			wantErr: "allowed values of a string field must be strings",
		},
		{
			name:    "allowed on boolean",
			fields:  []*Field{{Name: "a", Type: TypeBoolean, Allowed: []any{true}}},
			wantErr: "allowed is not supported on boolean fields",
		},
		{
			name:    "list item",
			fields:  []*Field{{Name: "a", Type: TypeList, Items: &Field{Type: TypeString, MinLength: intPtr(-2)}}},
			wantErr: "tasks.a.item: minlength must not be negative",
		},
		{
			name: "dict child",
			fields: []*Field{{Name: "a", Type: TypeDict, Fields: []*Field{
				{Name: "b", Type: TypeString},
				{Name: "b", Type: TypeString},
			}}},
			wantErr: "tasks.a.b: duplicate field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSchemaValidator().ValidateStructural(&Resource{Name: "tasks", Fields: tt.fields})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStructuralResets(t *testing.T) {
	v := NewSchemaValidator()

	require.Error(t, v.ValidateStructural(&Resource{}))
	assert.NoError(t, v.ValidateStructural(NewResource("tasks")))
}

func TestValidateStructuralJoinsErrors(t *testing.T) {
	err := NewSchemaValidator().ValidateStructural(&Resource{Name: "tasks", Fields: []*Field{
		{Name: "a", Type: TypeEmbedded},
		{Name: "b", Type: TypeBoolean, Allowed: []any{false}},
	}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed with 2 errors")
}
