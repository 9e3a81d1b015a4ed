package schema

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relationField(name, target string) *Field {
	return &Field{Name: name, Type: TypeObjectID, Relation: &Relation{Resource: target, Field: "_id"}}
}

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		reg := NewRegistry()
		res := &Resource{Name: "tasks", Fields: []*Field{{Name: "title", Type: TypeString}}}

		require.NoError(t, reg.Register(res))

		got, err := reg.Get("tasks")
		require.NoError(t, err)
		assert.Same(t, res, got)
		assert.True(t, reg.Exists("tasks"))
		assert.Equal(t, 1, reg.Count())
	})

	t.Run("duplicate", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(NewResource("tasks")))

		err := reg.Register(NewResource("tasks"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("structural errors are rejected", func(t *testing.T) {
		reg := NewRegistry()
		res := &Resource{Name: "tasks", Fields: []*Field{
			{Name: "title", Type: TypeString},
			{Name: "title", Type: TypeString},
		}}

		err := reg.Register(res)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tasks.title: duplicate field")
		assert.False(t, reg.Exists("tasks"))
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := NewRegistry().Get("taks")

		require.Error(t, err)
		assert.True(t, IsUnknownType(err))
		assert.True(t, errors.Is(err, ErrUnknownSchema))
		assert.True(t, errors.Is(fmt.Errorf("lookup: %w", err), ErrUnknownSchema))
		assert.Equal(t, `unknown schema: "taks"`, err.Error())
	})

	t.Run("register raw", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterRaw("users", map[string]any{"name": "string"}))

		res, err := reg.Get("users")
		require.NoError(t, err)
		assert.True(t, res.HasField("name"))

		assert.Error(t, reg.RegisterRaw("broken", map[string]any{"name": "varchar"}))
	})

	t.Run("names are sorted", func(t *testing.T) {
		reg := NewRegistry()
		for _, n := range []string{"users", "tasks", "comments"} {
			require.NoError(t, reg.Register(NewResource(n)))
		}

		assert.Equal(t, []string{"comments", "tasks", "users"}, reg.Names())
		assert.Len(t, reg.All(), 3)

		reg.Clear()
		assert.Zero(t, reg.Count())
	})

	t.Run("forward references are checked by ValidateAll", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(&Resource{Name: "tasks", Fields: []*Field{relationField("owner", "users")}}))

		err := reg.ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "references unknown resource users")

		require.NoError(t, reg.Register(NewResource("users")))
		assert.NoError(t, reg.ValidateAll())
	})
}

func TestRegistryReplace(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewResource("old")))

	t.Run("invalid set keeps the current one", func(t *testing.T) {
		err := reg.Replace(map[string]*Resource{
			"tasks": {Name: "tasks", Fields: []*Field{relationField("owner", "users")}},
		})
		require.Error(t, err)
		assert.Equal(t, []string{"old"}, reg.Names())
	})

	t.Run("valid set swaps", func(t *testing.T) {
		err := reg.Replace(map[string]*Resource{
			"tasks": {Name: "tasks", Fields: []*Field{relationField("owner", "users")}},
			"users": NewResource("users"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"tasks", "users"}, reg.Names())
	})

	t.Run("concurrent readers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = reg.Replace(map[string]*Resource{"users": NewResource("users")})
			}()
			go func() {
				defer wg.Done()
				_ = reg.Names()
				_, _ = reg.Get("users")
			}()
		}
		wg.Wait()
		assert.True(t, reg.Exists("users"))
	})
}

func TestDependencyOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Replace(map[string]*Resource{
		"comments": {Name: "comments", Fields: []*Field{relationField("task", "tasks"), relationField("author", "users")}},
		"tasks":    {Name: "tasks", Fields: []*Field{relationField("owner", "users")}},
		"users":    NewResource("users"),
	}))

	order, err := reg.DependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "tasks", "comments"}, order)
}

func TestDefaultValue(t *testing.T) {
	minLen := 1
	tests := []struct {
		name  string
		field *Field
		want  any
	}{
		{"nil field", nil, nil},
		{"string", &Field{Type: TypeString}, ""},
		{"plain objectid", &Field{Type: TypeObjectID}, ""},
		{"embedded objectid", &Field{Type: TypeObjectID, Relation: &Relation{Resource: "users", Embeddable: true}}, nil},
		{"integer", &Field{Type: TypeInteger}, float64(0)},
		{"float", &Field{Type: TypeFloat}, float64(0)},
		{"boolean", &Field{Type: TypeBoolean}, false},
		{"list", &Field{Type: TypeList}, []any{}},
		{"point", &Field{Type: TypePoint}, map[string]any{"type": "Point", "coordinates": []any{float64(0), float64(0)}}},
		{"media", &Field{Type: TypeMedia}, nil},
		{"poly", &Field{Type: TypePoly}, nil},
		{"declared default", &Field{Type: TypeString, Default: "todo", MinLength: &minLen}, "todo"},
		{
			"dict",
			&Field{Type: TypeDict, Fields: []*Field{{Name: "city", Type: TypeString}, {Name: "zip", Type: TypeInteger}}},
			map[string]any{"city": "", "zip": float64(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultValue(tt.field))
		})
	}

	t.Run("datetime is now", func(t *testing.T) {
		v, ok := DefaultValue(&Field{Type: TypeDatetime}).(time.Time)
		require.True(t, ok)
		assert.WithinDuration(t, time.Now(), v, 2*time.Second)
	})

	t.Run("declared defaults are copied", func(t *testing.T) {
		f := &Field{Type: TypeList, Default: []any{"a"}}
		v := DefaultValue(f).([]any)
		v[0] = "changed"
		assert.Equal(t, []any{"a"}, f.Default)
	})
}

func TestDefaultData(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterRaw("tasks", Ordered{
		{Key: "title", Value: "string"},
		{Key: "done", Value: map[string]any{"type": "boolean", "default": true}},
	}))

	data, err := reg.DefaultData("tasks")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "", "done": true}, data)

	_, err = reg.DefaultData("users")
	assert.ErrorIs(t, err, ErrUnknownSchema)
}
