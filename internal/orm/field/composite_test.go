package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

func TestListField(t *testing.T) {
	typed := &schema.Field{Name: "tags", Type: schema.TypeList, Items: &schema.Field{Type: schema.TypeString}}

	t.Run("builds one child per entry", func(t *testing.T) {
		l := build(t, typed, []any{"a", "b", "c"}).(*List)
		assert.Equal(t, 3, l.Len())
		assert.Equal(t, 3, l.Memo())

		c, ok := l.Child(1)
		require.True(t, ok)
		assert.Equal(t, "1", c.Name())
		assert.Equal(t, "tags.1", c.Path())
	})

	t.Run("append and remove change the count", func(t *testing.T) {
		l := build(t, typed, []any{"a"}).(*List)

		_, err := l.AppendValue("b")
		require.NoError(t, err)
		assert.True(t, l.HasUpdated())

		require.True(t, l.RemoveAt(1))
		assert.False(t, l.HasUpdated())

		require.True(t, l.RemoveAt(0))
		assert.True(t, l.HasUpdated())

		l.Reset()
		assert.False(t, l.HasUpdated())
		assert.Equal(t, []any{"a"}, l.Value())
	})

	t.Run("child update marks the list", func(t *testing.T) {
		l := build(t, typed, []any{"a"}).(*List)
		c, _ := l.Child(0)
		c.(*String).Set("z")
		assert.True(t, l.HasUpdated())

		l.SelfCommit()
		assert.False(t, l.HasUpdated())
		assert.Equal(t, []any{"z"}, l.MemoValue())
	})

	t.Run("typed entries are checked", func(t *testing.T) {
		_, err := NewBuilder(nil).Build(typed, []any{"a", 1})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("cleaning drops empty entries but keeps false and zero", func(t *testing.T) {
		l := build(t, &schema.Field{Name: "mixed", Type: schema.TypeList}, []any{"a", "", nil, false, 0.0, math.NaN()})
		c, err := l.CleanedData()
		require.NoError(t, err)
		assert.Equal(t, []any{"a", false, 0.0}, c)
	})

	t.Run("allowed selection goes out verbatim", func(t *testing.T) {
		def := &schema.Field{
			Name:    "colors",
			Type:    schema.TypeList,
			Allowed: []any{"red", "green", "blue"},
			Items:   &schema.Field{Type: schema.TypeString},
		}
		l := build(t, def, []any{"red"}).(*List)

		require.NoError(t, l.SetSelection([]any{"green", "blue"}))
		assert.True(t, l.HasUpdated())
		assert.Equal(t, 1, l.Memo())

		c, err := l.CleanedData()
		require.NoError(t, err)
		assert.Equal(t, []any{"green", "blue"}, c)
	})

	t.Run("swapping a selected member is an update", func(t *testing.T) {
		def := &schema.Field{Name: "colors", Type: schema.TypeList, Items: &schema.Field{Type: schema.TypeString}}
		l := build(t, def, []any{"red"}).(*List)

		require.NoError(t, l.SetSelection([]any{"blue"}))
		assert.True(t, l.HasUpdated())
	})

	t.Run("length options apply to the count", func(t *testing.T) {
		def := &schema.Field{Name: "tags", Type: schema.TypeList, MaxLength: intp(1), Items: &schema.Field{Type: schema.TypeString}}
		l := build(t, def, []any{"a", "b"})
		assert.Error(t, l.Validate())
	})
}

func TestListSelfUpdate(t *testing.T) {
	typed := &schema.Field{Name: "tags", Type: schema.TypeList, Items: &schema.Field{Type: schema.TypeString}}

	tests := []struct {
		name   string
		update []any
	}{
		{"same length", []any{"x", "y"}},
		{"grow", []any{"a", "b", "c"}},
		{"shrink", []any{"a"}},
		{"empty", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := build(t, typed, []any{"a", "b"}).(*List)

			require.NoError(t, l.SelfUpdate(tt.update, false))
			assert.True(t, l.HasUpdated())
			assert.Equal(t, tt.update, l.Value())
			assert.Equal(t, []any{"a", "b"}, l.MemoValue())

			l.Reset()
			assert.False(t, l.HasUpdated())
			assert.Equal(t, []any{"a", "b"}, l.Value())

			require.NoError(t, l.SelfUpdate(tt.update, true))
			assert.False(t, l.HasUpdated())
			assert.Equal(t, tt.update, l.MemoValue())
		})
	}

	t.Run("entries are updated in place", func(t *testing.T) {
		l := build(t, typed, []any{"a", "b"}).(*List)
		first, _ := l.Child(0)

		require.NoError(t, l.SelfUpdate([]any{"x", "b"}, false))
		again, _ := l.Child(0)
		assert.Same(t, first, again)
		assert.True(t, first.HasUpdated())
	})

	t.Run("another list field", func(t *testing.T) {
		l := build(t, typed, []any{"a"}).(*List)
		other := build(t, typed, []any{"z"})

		require.NoError(t, l.SelfUpdate(other, false))
		assert.True(t, l.HasUpdated())
		assert.Equal(t, []any{"z"}, l.Value())
	})

	t.Run("rejected entries leave the list untouched", func(t *testing.T) {
		l := build(t, typed, []any{"a", "b"}).(*List)

		err := l.SelfUpdate([]any{"x", 1, 2}, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tags.1")
		assert.Equal(t, []any{"a", "b"}, l.Value())
		assert.False(t, l.HasUpdated())

		assert.Error(t, l.SelfUpdate([]any{"a", "b", 3}, false))
		assert.Equal(t, 2, l.Len())
	})

	t.Run("open list swaps entries that change type", func(t *testing.T) {
		l := build(t, &schema.Field{Name: "any", Type: schema.TypeList}, []any{"a", 1.0}).(*List)

		require.NoError(t, l.SelfUpdate([]any{2.0, 1.0}, false))
		assert.True(t, l.HasUpdated())
		c, _ := l.Child(0)
		assert.Equal(t, schema.TypeNumber, c.Type())
		assert.Equal(t, "0", c.Name())
		assert.True(t, isPending(l.Children()[len(l.Children())-1]))

		l.Reset()
		assert.False(t, l.HasUpdated())
		assert.Equal(t, []any{"a", 1.0}, l.Value())
		c, _ = l.Child(0)
		assert.Equal(t, schema.TypeString, c.Type())

		require.NoError(t, l.SelfUpdate([]any{2.0, 1.0}, true))
		assert.False(t, l.HasUpdated())
	})
}

func TestFailedLoadKeepsContent(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		def := &schema.Field{Name: "tags", Type: schema.TypeList, Items: &schema.Field{Type: schema.TypeString}}
		l := build(t, def, []any{"a"}).(*List)

		assert.Error(t, l.SetValue([]any{"b", 2}))
		assert.Equal(t, []any{"a"}, l.Value())
		assert.Equal(t, 1, l.Len())
	})

	t.Run("dict", func(t *testing.T) {
		def := &schema.Field{Name: "address", Type: schema.TypeDict, Fields: []*schema.Field{
			{Name: "street", Type: schema.TypeString},
			{Name: "number", Type: schema.TypeNumber},
		}}
		n := build(t, def, map[string]any{"street": "main", "number": 1.0}).(*Nested)

		assert.Error(t, n.SetValue(map[string]any{"street": "side", "number": "one"}))
		assert.Equal(t, map[string]any{"street": "main", "number": 1.0}, n.Value())
		c, ok := n.Child("street")
		require.True(t, ok)
		assert.Equal(t, n, c.Parent())
	})
}

func TestOpenList(t *testing.T) {
	l := build(t, &schema.Field{Name: "any", Type: schema.TypeList}, []any{1.0, "x"}).(*List)

	children := l.Children()
	require.Len(t, children, 3)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, schema.TypeNumber, children[0].Type())
	assert.True(t, children[0].IsPolyMorph())
	assert.Equal(t, schema.TypeString, children[1].Type())

	pending, ok := children[2].(*Poly)
	require.True(t, ok)
	assert.True(t, pending.IsPending())
	assert.False(t, l.HasUpdated())

	t.Run("the pending slot is not in the payload", func(t *testing.T) {
		c, err := l.CleanedData()
		require.NoError(t, err)
		assert.Equal(t, []any{1.0, "x"}, c)
	})

	t.Run("resolving the slot adds an entry and a new slot", func(t *testing.T) {
		require.NoError(t, pending.Set(true))
		f, err := pending.SetType(schema.TypeBoolean, "")
		require.NoError(t, err)

		assert.Equal(t, "2", f.Name())
		assert.Equal(t, 3, l.Len())
		assert.True(t, l.HasUpdated())

		children := l.Children()
		require.Len(t, children, 4)
		assert.True(t, isPending(children[3]))
		assert.Equal(t, []any{1.0, "x", true}, l.Value())
	})

	t.Run("appending keeps the slot last", func(t *testing.T) {
		_, err := l.AppendValue("y")
		require.NoError(t, err)

		children := l.Children()
		assert.True(t, isPending(children[len(children)-1]))
		assert.Equal(t, 4, l.Len())
	})
}

func TestEnsurePolyKeepsExactlyOneSlot(t *testing.T) {
	l := build(t, &schema.Field{Name: "any", Type: schema.TypeList}, []any{}).(*List)

	l.EnsurePoly()
	l.EnsurePoly()

	pending := 0
	for _, c := range l.Children() {
		if isPending(c) {
			pending++
		}
	}
	assert.Equal(t, 1, pending)
	assert.Equal(t, 0, l.Len())
}

func TestNestedField(t *testing.T) {
	def := &schema.Field{
		Name: "address",
		Type: schema.TypeDict,
		Fields: []*schema.Field{
			{Name: "street", Type: schema.TypeString, Required: true},
			{Name: "zip", Type: schema.TypeString, MaxLength: intp(5)},
			{Name: "floor", Type: schema.TypeInteger},
		},
	}

	t.Run("children follow schema order", func(t *testing.T) {
		n := build(t, def, map[string]any{"zip": "75001", "street": "rue"}).(*Nested)
		assert.Equal(t, []string{"street", "zip", "floor"}, n.Keys())

		floor, ok := n.Child("floor")
		require.True(t, ok)
		assert.Equal(t, 0.0, floor.Value())
		assert.Equal(t, "address.floor", floor.Path())
	})

	t.Run("validation aggregates every failure", func(t *testing.T) {
		n := build(t, def, map[string]any{"zip": "750010"})
		err := n.Validate()
		require.Error(t, err)

		ve, ok := err.(*ValidationError)
		require.True(t, ok)
		assert.Len(t, ve.Messages, 2)
		assert.Contains(t, err.Error(), "address.street")
		assert.Contains(t, err.Error(), "address.zip")
	})

	t.Run("set and reset", func(t *testing.T) {
		n := build(t, def, map[string]any{"street": "rue"}).(*Nested)
		require.NoError(t, n.Set("street", "avenue"))
		assert.True(t, n.HasUpdated())

		n.Reset()
		assert.False(t, n.HasUpdated())
		assert.Equal(t, "rue", n.Value().(map[string]any)["street"])
	})

	t.Run("unknown key on a closed dict", func(t *testing.T) {
		n := build(t, def, nil).(*Nested)
		assert.Error(t, n.Set("nope", 1))
	})

	t.Run("self update ignores undeclared keys", func(t *testing.T) {
		n := build(t, def, map[string]any{"street": "rue"}).(*Nested)
		require.NoError(t, n.SelfUpdate(map[string]any{"street": "quai", "_etag": "x"}, true))
		assert.False(t, n.HasUpdated())
		assert.Equal(t, "quai", n.MemoValue()["street"])
	})
}

func TestOpenDict(t *testing.T) {
	n := build(t, &schema.Field{Name: "extra", Type: schema.TypeDict}, map[string]any{
		"b":    true,
		"a":    "text",
		"when": "Wed, 01 Jan 2020 00:00:00 GMT",
		"none": nil,
	}).(*Nested)

	assert.Equal(t, []string{"a", "b", "none", "when"}, n.Keys())
	when, _ := n.Child("when")
	assert.Equal(t, schema.TypeDatetime, when.Type())
	none, _ := n.Child("none")
	assert.Equal(t, schema.TypePoly, none.Type())

	t.Run("new keys go through the pending slot", func(t *testing.T) {
		children := n.Children()
		slot := children[len(children)-1].(*Poly)
		require.True(t, slot.IsPending())

		slot.Rename("count")
		require.NoError(t, slot.Set(2.0))
		f, err := slot.SetType(schema.TypeNumber, "")
		require.NoError(t, err)
		assert.Equal(t, "extra.count", f.Path())
		assert.True(t, n.HasUpdated())

		c, err := n.CleanedData()
		require.NoError(t, err)
		assert.Equal(t, 2.0, c.(map[string]any)["count"])
	})

	t.Run("set adds inferred keys", func(t *testing.T) {
		require.NoError(t, n.Set("list", []any{"x"}))
		f, ok := n.Child("list")
		require.True(t, ok)
		assert.Equal(t, schema.TypeList, f.Type())
	})

	t.Run("delete removes keys", func(t *testing.T) {
		assert.True(t, n.Delete("b"))
		_, ok := n.Child("b")
		assert.False(t, ok)
	})
}

func TestEmbeddedField(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(&schema.Resource{
		Name: "users",
		Fields: []*schema.Field{
			{Name: "name", Type: schema.TypeString},
			{Name: "manager", Type: schema.TypeObjectID, Relation: &schema.Relation{Resource: "users", Field: "_id", Embeddable: true}},
		},
	}))
	def := &schema.Field{
		Name:     "owner",
		Type:     schema.TypeObjectID,
		Relation: &schema.Relation{Resource: "users", Field: "_id", Embeddable: true},
	}
	b := NewBuilder(reg)

	t.Run("an identifier becomes a document", func(t *testing.T) {
		f, err := b.Build(def, "u1")
		require.NoError(t, err)

		e := f.(*Embedded)
		assert.Equal(t, "u1", e.ID())
		assert.Equal(t, map[string]any{"_id": "u1"}, e.Value())
		assert.Equal(t, 2, e.Len())
	})

	t.Run("children come from the related schema", func(t *testing.T) {
		f, err := b.Build(def, map[string]any{"_id": "u1", "name": "Ada", "manager": map[string]any{"_id": "u2"}})
		require.NoError(t, err)

		e := f.(*Embedded)
		name, ok := e.Child("name")
		require.True(t, ok)
		assert.Equal(t, "Ada", name.Value())

		manager, ok := e.Child("manager")
		require.True(t, ok)
		assert.Equal(t, "u2", manager.(*Embedded).ID())
		assert.Equal(t, "owner.manager", manager.Path())
	})

	t.Run("only the identifier counts", func(t *testing.T) {
		f, err := b.Build(def, map[string]any{"_id": "u1", "name": "Ada"})
		require.NoError(t, err)

		require.NoError(t, f.SelfUpdate(map[string]any{"_id": "u1", "name": "Bob"}, false))
		assert.False(t, f.HasUpdated())

		require.NoError(t, f.SelfUpdate("u2", false))
		assert.True(t, f.HasUpdated())

		c, err := f.CleanedData()
		require.NoError(t, err)
		assert.Equal(t, "u2", c)

		f.Reset()
		assert.Equal(t, "u1", f.(*Embedded).ID())
	})

	t.Run("a document needs an identifier", func(t *testing.T) {
		f, err := b.Build(def, map[string]any{"name": "Ada"})
		require.NoError(t, err)

		err = f.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-empty ID required")
	})

	t.Run("unset relation", func(t *testing.T) {
		f, err := b.Build(def, nil)
		require.NoError(t, err)
		assert.NoError(t, f.Validate())

		c, err := f.CleanedData()
		require.NoError(t, err)
		assert.Nil(t, c)

		required := *def
		required.Required = true
		f, err = b.Build(&required, nil)
		require.NoError(t, err)
		assert.Error(t, f.Validate())
	})

	t.Run("unknown related resource", func(t *testing.T) {
		bad := &schema.Field{Name: "x", Type: schema.TypeEmbedded, Relation: &schema.Relation{Resource: "ghosts"}}
		_, err := b.Build(bad, "g1")
		assert.ErrorIs(t, err, schema.ErrUnknownSchema)
	})
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  schema.Type
		ok    bool
	}{
		{"null", nil, "", false},
		{"bool", false, schema.TypeBoolean, true},
		{"float", 1.5, schema.TypeNumber, true},
		{"int", 3, schema.TypeNumber, true},
		{"point", map[string]any{"type": "Point", "coordinates": []any{1.0, 2.0}}, schema.TypePoint, true},
		{"dict", map[string]any{"type": "Point"}, schema.TypeDict, true},
		{"list", []any{}, schema.TypeList, true},
		{"http date", "Wed, 01 Jan 2020 00:00:00 GMT", schema.TypeDatetime, true},
		{"iso date stays text", "2020-01-01", schema.TypeString, true},
		{"string", "x", schema.TypeString, true},
		{"unknown", struct{}{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InferType(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
