package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/field"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/transport"
)

const testEndpoint = "http://api.test"

func tasksSchema() *schema.Resource {
	return &schema.Resource{
		Name:      "tasks",
		ItemTitle: "title",
		Fields: []*schema.Field{
			{Name: "title", Type: schema.TypeString},
			{Name: "due", Type: schema.TypeDatetime},
			{Name: "tags", Type: schema.TypeList, Items: &schema.Field{Type: schema.TypeString}},
		},
	}
}

// fakeBackend answers like an Eve server and records what it received
type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	requests []*transport.Request
	seq      int
	fail     func(req *transport.Request) bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (b *fakeBackend) Do(_ context.Context, req *transport.Request) (*transport.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls[req.Method]++
	b.requests = append(b.requests, req.Clone())

	if b.fail != nil && b.fail(req) {
		body := []byte(`{"_status":"ERR","_error":{"code":412,"message":"etag mismatch"}}`)
		return &transport.Response{StatusCode: http.StatusPreconditionFailed, Body: body},
			transport.NewRemoteError(http.StatusPreconditionFailed, body)
	}

	b.seq++
	switch req.Method {
	case http.MethodPost:
		return jsonResponse(http.StatusCreated, map[string]any{
			"_id":      fmt.Sprintf("id-%d", b.seq),
			"_etag":    fmt.Sprintf("etag-%d", b.seq),
			"_created": "Wed, 01 Jan 2020 00:00:00 GMT",
			"_status":  "OK",
		}), nil
	case http.MethodPatch:
		return jsonResponse(http.StatusOK, map[string]any{
			"_etag":    fmt.Sprintf("etag-%d", b.seq),
			"_updated": "Thu, 02 Jan 2020 00:00:00 GMT",
			"_status":  "OK",
		}), nil
	case http.MethodDelete:
		return &transport.Response{StatusCode: http.StatusNoContent}, nil
	}
	return jsonResponse(http.StatusOK, map[string]any{}), nil
}

func (b *fakeBackend) count(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func (b *fakeBackend) last() *transport.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func jsonResponse(status int, doc any) *transport.Response {
	body, _ := json.Marshal(doc)
	return &transport.Response{StatusCode: status, Header: http.Header{}, Body: body}
}

func options(exec transport.Executor) Options {
	return Options{Endpoint: testEndpoint, Executor: exec}
}

func TestResourceCleanedData(t *testing.T) {
	res := &schema.Resource{
		Name: "tasks",
		Fields: []*schema.Field{
			{Name: "title", Type: schema.TypeString},
			{Name: "due", Type: schema.TypeDatetime},
		},
	}
	r, err := New(res, map[string]any{"title": "A", "due": "2020-01-01T00:00:00Z"}, Options{})
	require.NoError(t, err)

	got, err := r.CleanedData()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "A", "due": "Wed, 01 Jan 2020 00:00:00 GMT"}, got)
}

func TestResourceListRemove(t *testing.T) {
	r, err := New(tasksSchema(), map[string]any{"title": "A", "tags": []any{"a", "b"}}, Options{})
	require.NoError(t, err)
	require.False(t, r.HasUpdated())

	f, ok := r.Field("tags")
	require.True(t, ok)
	require.True(t, f.(*field.List).RemoveAt(1))

	assert.True(t, r.HasUpdated())
	got, err := f.CleanedData()
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got)
}

func TestResourceMeta(t *testing.T) {
	r, err := New(tasksSchema(), map[string]any{
		"_id":      "5e1f",
		"_etag":    "abc",
		"_created": "Wed, 01 Jan 2020 00:00:00 GMT",
		"_links":   map[string]any{"self": map[string]any{"href": "tasks/5e1f"}},
		"title":    "Write docs",
	}, Options{})
	require.NoError(t, err)

	assert.False(t, r.HasCreated())
	assert.Equal(t, StateRead, r.State())
	assert.Equal(t, "5e1f", r.ID())
	assert.Equal(t, "abc", r.ETag())
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), r.Meta().Created.UTC())
	assert.Contains(t, r.Meta().Links, "self")
	assert.Equal(t, "Write docs", r.Title())

	assert.NotContains(t, r.Value(), "_id")
	assert.NotContains(t, r.Value(), "_etag")
	assert.False(t, r.HasUpdated())
}

func TestResourceLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()

	r, err := New(tasksSchema(), nil, options(backend))
	require.NoError(t, err)
	assert.True(t, r.HasCreated())
	assert.Equal(t, StateCreate, r.State())
	assert.Equal(t, "new tasks", r.Title())

	t.Run("nothing to create", func(t *testing.T) {
		resp, err := r.Create(ctx)
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Zero(t, backend.count(http.MethodPost))
	})

	t.Run("update and delete need an identity", func(t *testing.T) {
		require.NoError(t, r.Set("title", "A"))

		resp, err := r.Update(ctx)
		require.NoError(t, err)
		assert.Nil(t, resp)

		resp, err = r.Delete(ctx)
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, StateCreate, r.State())
	})

	t.Run("create", func(t *testing.T) {
		resp, err := r.Create(ctx)
		require.NoError(t, err)
		require.NotNil(t, resp)

		req := backend.last()
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, testEndpoint+"/tasks", req.URL)
		assert.Empty(t, req.Header.Get("If-Match"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(req.Body, &body))
		assert.Equal(t, "A", body["title"])
		assert.Contains(t, body, "due")

		assert.False(t, r.HasCreated())
		assert.False(t, r.HasUpdated())
		assert.Equal(t, StateRead, r.State())
		assert.Equal(t, "id-1", r.ID())
		assert.Equal(t, "etag-1", r.ETag())
	})

	t.Run("update sends dirty fields only", func(t *testing.T) {
		resp, err := r.Update(ctx)
		require.NoError(t, err)
		assert.Nil(t, resp)

		require.NoError(t, r.Set("title", "B"))
		_, err = r.Update(ctx)
		require.NoError(t, err)

		req := backend.last()
		assert.Equal(t, http.MethodPatch, req.Method)
		assert.Equal(t, testEndpoint+"/tasks/id-1", req.URL)
		assert.Equal(t, "etag-1", req.Header.Get("If-Match"))
		assert.JSONEq(t, `{"title":"B"}`, string(req.Body))

		assert.False(t, r.HasUpdated())
		assert.Equal(t, StateRead, r.State())
		assert.Equal(t, "etag-2", r.ETag())
		assert.False(t, r.Meta().Updated.IsZero())
	})

	t.Run("delete", func(t *testing.T) {
		_, err := r.Delete(ctx)
		require.NoError(t, err)

		req := backend.last()
		assert.Equal(t, http.MethodDelete, req.Method)
		assert.Equal(t, "etag-2", req.Header.Get("If-Match"))
		assert.Equal(t, StateDelete, r.State())
		assert.True(t, r.Meta().Deleted)
	})

	assert.Equal(t, 1, backend.count(http.MethodPost))
	assert.Equal(t, 1, backend.count(http.MethodPatch))
	assert.Equal(t, 1, backend.count(http.MethodDelete))
}

func TestResourceFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.fail = func(req *transport.Request) bool { return req.Method != http.MethodGet }

	r, err := New(tasksSchema(), map[string]any{"_id": "5e1f", "_etag": "old", "title": "A"}, options(backend))
	require.NoError(t, err)
	require.NoError(t, r.Set("title", "B"))

	_, err = r.Update(ctx)
	require.Error(t, err)
	assert.True(t, transport.IsPreconditionFailed(err))
	assert.Equal(t, StateRead, r.State())
	assert.True(t, r.HasUpdated())
	assert.Equal(t, "old", r.ETag())

	_, err = r.Delete(ctx)
	require.Error(t, err)
	assert.Equal(t, StateRead, r.State())
	assert.False(t, r.Meta().Deleted)
}

func TestResourceMissingDependency(t *testing.T) {
	backend := newFakeBackend()
	tests := []struct {
		name string
		res  *schema.Resource
		opts Options
		dep  string
	}{
		{"endpoint", tasksSchema(), Options{Executor: backend}, "endpoint"},
		{"executor", tasksSchema(), Options{Endpoint: testEndpoint}, "executor"},
		{"name", &schema.Resource{}, options(backend), "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.res, nil, tt.opts)
			require.NoError(t, err)
			require.NoError(t, r.Set("title", "A"))

			_, err = r.Create(context.Background())
			require.Error(t, err)
			assert.True(t, IsMissingDependency(err))

			var mde *MissingDependencyError
			require.ErrorAs(t, err, &mde)
			assert.Equal(t, tt.dep, mde.Dependency)
		})
	}
	assert.Zero(t, backend.count(http.MethodPost))

	_, err := New(nil, nil, Options{})
	assert.True(t, IsMissingDependency(err))
}

func TestResourceChangesAndReset(t *testing.T) {
	r, err := New(tasksSchema(), map[string]any{"_id": "1", "title": "A"}, Options{})
	require.NoError(t, err)

	require.NoError(t, r.Set("title", "B"))
	changes := r.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, "title", changes[0].Field)
	assert.Equal(t, "A", changes[0].OldValue)
	assert.Equal(t, "B", changes[0].NewValue)

	r.Reset()
	assert.Empty(t, r.Changes())
	assert.False(t, r.HasUpdated())
}

func TestResourceListEdit(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	data := map[string]any{"_id": "1", "_etag": "e0", "title": "A", "tags": []any{"a", "b"}}

	t.Run("same length replacement is sent", func(t *testing.T) {
		r, err := New(tasksSchema(), data, options(backend))
		require.NoError(t, err)

		require.NoError(t, r.Set("tags", []any{"x", "y"}))
		assert.True(t, r.HasUpdated())

		_, err = r.Update(ctx)
		require.NoError(t, err)
		req := backend.last()
		assert.Equal(t, http.MethodPatch, req.Method)
		assert.JSONEq(t, `{"tags":["x","y"]}`, string(req.Body))
		assert.False(t, r.HasUpdated())
	})

	t.Run("replacement can be reset", func(t *testing.T) {
		r, err := New(tasksSchema(), data, options(backend))
		require.NoError(t, err)

		require.NoError(t, r.Set("tags", []any{"x", "y"}))
		r.Reset()
		assert.False(t, r.HasUpdated())
		assert.Equal(t, []any{"a", "b"}, r.Value()["tags"])
	})

	t.Run("rejected entries leave the list", func(t *testing.T) {
		r, err := New(tasksSchema(), data, options(backend))
		require.NoError(t, err)

		assert.Error(t, r.Set("tags", []any{"x", 1}))
		assert.False(t, r.HasUpdated())
		assert.Equal(t, []any{"a", "b"}, r.Value()["tags"])
	})
}

func TestResourceSelfUpdate(t *testing.T) {
	r, err := New(tasksSchema(), map[string]any{"title": "A"}, Options{})
	require.NoError(t, err)

	require.NoError(t, r.SelfUpdate(map[string]any{"_id": "9", "title": "B"}, true))
	assert.Equal(t, "9", r.ID())
	assert.False(t, r.HasUpdated())

	f, _ := r.Field("title")
	assert.Equal(t, "B", f.Value())
	assert.Equal(t, "tasks.title", f.Path())
}

func TestResourceReload(t *testing.T) {
	exec := transport.ExecutorFunc(func(_ context.Context, req *transport.Request) (*transport.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, testEndpoint+"/tasks/1", req.URL)
		return jsonResponse(http.StatusOK, map[string]any{"_id": "1", "_etag": "fresh", "title": "Remote"}), nil
	})

	r, err := New(tasksSchema(), map[string]any{"_id": "1", "title": "A"}, options(exec))
	require.NoError(t, err)
	require.NoError(t, r.Set("title", "Local"))

	require.NoError(t, r.Reload(context.Background()))
	f, _ := r.Field("title")
	assert.Equal(t, "Remote", f.Value())
	assert.Equal(t, "fresh", r.ETag())
	assert.False(t, r.HasUpdated())
}

func TestResourceIsContainer(t *testing.T) {
	var c field.Container
	r, err := New(tasksSchema(), nil, Options{})
	require.NoError(t, err)
	c = r

	assert.Equal(t, schema.TypeResource, c.Type())
	assert.Nil(t, c.Parent())
	assert.Len(t, c.Children(), 3)
	for _, child := range c.Children() {
		assert.Same(t, r.Body(), child.Parent())
	}
}

func TestStateString(t *testing.T) {
	for _, s := range []State{StateCreate, StateRead, StateUpdate, StateDelete} {
		parsed, ok := ParseState(s.String())
		require.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "UNKNOWN", State(42).String())
}
