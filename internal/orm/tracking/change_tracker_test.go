package tracking

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChangeTracker(t *testing.T) {
	original := map[string]any{"_id": "t1", "title": "draft", "points": float64(3), "gone": true}
	current := map[string]any{"_id": "t1", "title": "final", "points": float64(3), "added": "x"}

	ct := NewChangeTracker(original, current)

	assert.True(t, ct.HasChanges())
	assert.Equal(t, []string{"added", "gone", "title"}, ct.ChangedFields())
	assert.False(t, ct.Changed("points"))
	assert.False(t, ct.Changed("_id"))

	assert.Equal(t, &FieldChange{Field: "title", OldValue: "draft", NewValue: "final"}, ct.GetChange("title"))
	assert.Equal(t, &FieldChange{Field: "gone", OldValue: true}, ct.GetChange("gone"))
	assert.Equal(t, &FieldChange{Field: "added", NewValue: "x"}, ct.GetChange("added"))
	assert.Nil(t, ct.GetChange("points"))
}

func TestChangeTrackerChanges(t *testing.T) {
	ct := NewChangeTracker(
		map[string]any{"b": 1, "a": 1},
		map[string]any{"b": 2, "a": 2},
	)

	changes := ct.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "a", changes[0].Field)
	assert.Equal(t, "b", changes[1].Field)
	assert.Equal(t, map[string]any{"a": 2, "b": 2}, ct.GetChangedData())
}

func TestChangeTrackerSetFieldValue(t *testing.T) {
	ct := NewChangeTracker(map[string]any{"title": "a"}, map[string]any{"title": "a"})
	require.False(t, ct.HasChanges())

	ct.SetFieldValue("title", "b")
	assert.True(t, ct.Changed("title"))

	ct.SetFieldValue("title", "a")
	assert.False(t, ct.Changed("title"), "setting the baseline value back clears the change")

	ct.SetFieldValue("tags", []any{"x"})
	assert.Equal(t, []string{"tags"}, ct.ChangedFields())
}

func TestChangeTrackerReset(t *testing.T) {
	ct := NewChangeTracker(map[string]any{"tags": []any{"a"}}, map[string]any{"tags": []any{"a", "b"}})
	require.True(t, ct.HasChanges())

	ct.Reset()
	assert.False(t, ct.HasChanges())

	ct.SetFieldValue("tags", []any{"a", "b"})
	assert.False(t, ct.HasChanges())
}

func TestChangeTrackerNilMaps(t *testing.T) {
	ct := NewChangeTracker(nil, nil)
	assert.False(t, ct.HasChanges())

	ct.SetFieldValue("title", "x")
	assert.True(t, ct.Changed("title"))
}

func TestChangeTrackerCopiesInput(t *testing.T) {
	nested := map[string]any{"city": "Lyon"}
	current := map[string]any{"address": nested}
	ct := NewChangeTracker(map[string]any{"address": map[string]any{"city": "Lyon"}}, current)
	require.False(t, ct.HasChanges())

	nested["city"] = "Paris"
	assert.False(t, ct.HasChanges(), "later edits of the caller's maps are not seen")
}

func TestChangeTrackerConcurrentAccess(t *testing.T) {
	ct := NewChangeTracker(map[string]any{}, map[string]any{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ct.SetFieldValue(fmt.Sprintf("f%d", i), i)
		}(i)
		go func() {
			defer wg.Done()
			_ = ct.ChangedFields()
			_ = ct.Changes()
		}()
	}
	wg.Wait()

	assert.Len(t, ct.ChangedFields(), 20)
}

func TestEqual(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", nil, "", false},
		{"same instant in other zones", now, now.In(time.FixedZone("x", 3600)), true},
		{"time against string", now, now.String(), false},
		{"nested", map[string]any{"a": []any{1}}, map[string]any{"a": []any{1}}, true},
		{"different numbers", float64(1), float64(2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestDeepCopy(t *testing.T) {
	t.Run("generic containers", func(t *testing.T) {
		src := map[string]any{"list": []any{map[string]any{"a": 1}}, "raw": []byte("ab")}
		dst := DeepCopy(src).(map[string]any)

		dst["list"].([]any)[0].(map[string]any)["a"] = 2
		dst["raw"].([]byte)[0] = 'z'

		assert.Equal(t, 1, src["list"].([]any)[0].(map[string]any)["a"])
		assert.Equal(t, []byte("ab"), src["raw"])
	})

	t.Run("typed containers", func(t *testing.T) {
		src := map[string][]string{"tags": {"a"}}
		dst := DeepCopy(src).(map[string][]string)
		dst["tags"][0] = "b"
		assert.Equal(t, "a", src["tags"][0])

		nums := []float64{1, 2}
		cp := DeepCopy(nums).([]float64)
		cp[0] = 9
		assert.Equal(t, float64(1), nums[0])
	})

	t.Run("nil values", func(t *testing.T) {
		assert.Nil(t, DeepCopy(nil))
		var s []string
		assert.Nil(t, DeepCopy(s))
		assert.Equal(t, map[string]any{}, DeepCopyMap(nil))
	})
}
