package mockapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	doc := map[string]any{
		"title":  "a",
		"points": float64(3),
		"meta":   map[string]any{"owner": "ada"},
	}

	tests := []struct {
		name  string
		where map[string]any
		want  bool
	}{
		{"empty", nil, true},
		{"equal", map[string]any{"title": "a"}, true},
		{"not equal", map[string]any{"title": "b"}, false},
		{"dotted", map[string]any{"meta.owner": "ada"}, true},
		{"dotted through scalar", map[string]any{"title.x": "a"}, false},
		{"range", map[string]any{"points": map[string]any{"$gt": 1.0, "$lte": 3.0}}, true},
		{"range miss", map[string]any{"points": map[string]any{"$lt": 3.0}}, false},
		{"ne", map[string]any{"title": map[string]any{"$ne": "b"}}, true},
		{"in", map[string]any{"title": map[string]any{"$in": []any{"a", "b"}}}, true},
		{"nin", map[string]any{"title": map[string]any{"$nin": []any{"a"}}}, false},
		{"missing field never compares", map[string]any{"due": map[string]any{"$lt": "z"}}, false},
		{"unknown operator", map[string]any{"title": map[string]any{"$regex": "a"}}, false},
		{"plain dict", map[string]any{"meta": map[string]any{"owner": "ada"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(doc, tt.where))
		})
	}
}
