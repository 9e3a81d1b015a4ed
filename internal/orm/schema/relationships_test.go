package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipGraph(t *testing.T) {
	schemas := map[string]*Resource{
		"users": NewResource("users"),
		"tasks": {Name: "tasks", Fields: []*Field{
			relationField("owner", "users"),
			relationField("reviewer", "users"),
			relationField("parent", "tasks"),
		}},
		"comments": {Name: "comments", Fields: []*Field{
			{Name: "meta", Type: TypeDict, Fields: []*Field{relationField("task", "tasks")}},
		}},
	}
	graph := NewRelationshipGraph(schemas)

	t.Run("dependencies", func(t *testing.T) {
		assert.Equal(t, []string{"users"}, graph.GetDependencies("tasks"))
		assert.Equal(t, []string{"tasks"}, graph.GetDependencies("comments"))
		assert.Empty(t, graph.GetDependencies("users"))
		assert.Empty(t, graph.GetDependencies("missing"))
	})

	t.Run("dependents", func(t *testing.T) {
		assert.Equal(t, []string{"tasks"}, graph.GetDependents("users"))
		assert.Equal(t, []string{"comments"}, graph.GetDependents("tasks"))
		assert.Empty(t, graph.GetDependents("comments"))
	})

	t.Run("self references do not form cycles", func(t *testing.T) {
		assert.Empty(t, graph.DetectCycles())

		order, err := graph.TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, []string{"users", "tasks", "comments"}, order)
	})
}

func TestRelationshipCycles(t *testing.T) {
	graph := NewRelationshipGraph(map[string]*Resource{
		"a": {Name: "a", Fields: []*Field{relationField("b", "b")}},
		"b": {Name: "b", Fields: []*Field{relationField("a", "a")}},
		"c": NewResource("c"),
	})

	cycles := graph.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b"}, cycles[0])

	_, err := graph.TopologicalSort()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cycle 1: a -> b -> a")
}

func TestRelationshipValidator(t *testing.T) {
	tests := []struct {
		name    string
		schemas map[string]*Resource
		wantErr string
	}{
		{
			name: "valid",
			schemas: map[string]*Resource{
				"users": {Name: "users", Fields: []*Field{{Name: "email", Type: TypeString}}},
				"tasks": {Name: "tasks", Fields: []*Field{{
					Name: "owner", Type: TypeObjectID,
					Relation: &Relation{Resource: "users", Field: "email"},
				}}},
			},
		},
		{
			name: "unknown resource",
			schemas: map[string]*Resource{
				"tasks": {Name: "tasks", Fields: []*Field{relationField("owner", "users")}},
			},
			wantErr: "tasks.owner: references unknown resource users",
		},
		{
			name: "unknown field",
			schemas: map[string]*Resource{
				"users": NewResource("users"),
				"tasks": {Name: "tasks", Fields: []*Field{{
					Name: "owner", Type: TypeObjectID,
					Relation: &Relation{Resource: "users", Field: "email"},
				}}},
			},
			wantErr: "tasks.owner: references unknown field users.email",
		},
		{
			name: "nested relation",
			schemas: map[string]*Resource{
				"tasks": {Name: "tasks", Fields: []*Field{{
					Name: "meta", Type: TypeDict,
					Fields: []*Field{relationField("owner", "users")},
				}}},
			},
			wantErr: "tasks.meta.owner: references unknown resource users",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRelationshipValidator(tt.schemas).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
