package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cache"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/tracking"
)

// table holds the documents of one resource in insertion order
type table struct {
	order []string
	docs  map[string]map[string]any
}

// store is the in-memory document database behind the server. It is safe
// for concurrent use.
type store struct {
	mu     sync.RWMutex
	tables map[string]*table
	now    func() time.Time
}

func newStore(now func() time.Time) *store {
	if now == nil {
		now = time.Now
	}
	return &store{tables: make(map[string]*table), now: now}
}

func (s *store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{docs: make(map[string]map[string]any)}
		s.tables[name] = t
	}
	return t
}

// insert stores doc under a fresh identity and returns the stored copy
func (s *store) insert(name string, doc map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := tracking.DeepCopyMap(doc)
	if id, ok := stored["_id"].(string); !ok || id == "" {
		stored["_id"] = uuid.NewString()
	}
	stamp := s.now().UTC().Format(http.TimeFormat)
	stored["_created"] = stamp
	stored["_updated"] = stamp
	stored["_etag"] = etagOf(stored)

	t := s.table(name)
	id := stored["_id"].(string)
	if _, exists := t.docs[id]; !exists {
		t.order = append(t.order, id)
	}
	t.docs[id] = stored
	return tracking.DeepCopyMap(stored)
}

func (s *store) get(name, id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil, false
	}
	return tracking.DeepCopyMap(doc), true
}

// update merges patch into the document, or replaces its content when
// replace is set. Meta keys of patch are ignored.
func (s *store) update(name, id string, patch map[string]any, replace bool) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil, false
	}

	next := doc
	if replace {
		next = map[string]any{"_id": id, "_created": doc["_created"]}
	}
	for k, v := range patch {
		if isMeta(k) {
			continue
		}
		next[k] = tracking.DeepCopy(v)
	}
	next["_updated"] = s.now().UTC().Format(http.TimeFormat)
	next["_etag"] = etagOf(next)
	t.docs[id] = next
	return tracking.DeepCopyMap(next), true
}

func (s *store) remove(name, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return false
	}
	if _, ok := t.docs[id]; !ok {
		return false
	}
	delete(t.docs, id)
	for i, cur := range t.order {
		if cur == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *store) drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

// list returns the documents of name matching where, sorted by the given
// keys, in insertion order otherwise
func (s *store) list(name string, where map[string]any, sortKeys []string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(t.order))
	for _, id := range t.order {
		doc := t.docs[id]
		if matches(doc, where) {
			out = append(out, tracking.DeepCopyMap(doc))
		}
	}
	if len(sortKeys) > 0 {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j], sortKeys) })
	}
	return out
}

func matches(doc, where map[string]any) bool {
	for k, want := range where {
		have := lookup(doc, k)
		if ops, ok := operatorDoc(want); ok {
			for op, arg := range ops {
				if !matchOperator(have, op, arg) {
					return false
				}
			}
			continue
		}
		if !tracking.Equal(have, want) {
			return false
		}
	}
	return true
}

// lookup resolves a dotted path through nested documents
func lookup(doc map[string]any, path string) any {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// operatorDoc reports whether v is a document of $ operators
func operatorDoc(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matchOperator(have any, op string, arg any) bool {
	switch op {
	case "$ne":
		return !tracking.Equal(have, arg)
	case "$gt":
		return have != nil && compare(have, arg) > 0
	case "$gte":
		return have != nil && compare(have, arg) >= 0
	case "$lt":
		return have != nil && compare(have, arg) < 0
	case "$lte":
		return have != nil && compare(have, arg) <= 0
	case "$in", "$nin":
		list, _ := arg.([]any)
		found := false
		for _, v := range list {
			if tracking.Equal(have, v) {
				found = true
				break
			}
		}
		return found == (op == "$in")
	default:
		return false
	}
}

func less(a, b map[string]any, keys []string) bool {
	for _, key := range keys {
		desc := strings.HasPrefix(key, "-")
		key = strings.TrimPrefix(key, "-")
		c := compare(a[key], b[key])
		if c == 0 {
			continue
		}
		if desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compare(a, b any) int {
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func isMeta(key string) bool {
	return strings.HasPrefix(key, "_")
}

// etagOf hashes the document content with its identity and update stamp
func etagOf(doc map[string]any) string {
	content := make(map[string]any, len(doc))
	for k, v := range doc {
		if !isMeta(k) {
			content[k] = v
		}
	}
	content["_id"] = doc["_id"]
	content["_updated"] = doc["_updated"]
	data, _ := json.Marshal(content)
	return strings.Trim(cache.GenerateETag(data), `"`)
}
