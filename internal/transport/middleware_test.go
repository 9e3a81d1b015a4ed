package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cache"
)

func get(t *testing.T, e Executor, url string) *Response {
	t.Helper()
	req, err := NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := e.Do(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func TestCached_Revalidates(t *testing.T) {
	var hits, notModified atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"_id":"1"}`))
	}))
	defer server.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()
	exec := Chain(NewHTTPExecutor(HTTPOptions{}), Cached(mem, time.Minute, nil))

	first := get(t, exec, server.URL+"/tasks/1")
	second := get(t, exec, server.URL+"/tasks/1")

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
	assert.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, first.Body, second.Body)
}

func TestCached_WritesClearTheCache(t *testing.T) {
	var conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			conditional.Add(1)
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()
	exec := Chain(NewHTTPExecutor(HTTPOptions{}), Cached(mem, time.Minute, nil))

	get(t, exec, server.URL+"/tasks/1")

	req, err := NewRequest(http.MethodPatch, server.URL+"/tasks/1", map[string]any{"title": "B"})
	require.NoError(t, err)
	_, err = exec.Do(context.Background(), req)
	require.NoError(t, err)

	get(t, exec, server.URL+"/tasks/1")
	assert.Equal(t, int32(0), conditional.Load())
}

func TestCached_SkipsResponsesWithoutValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()
	exec := Chain(NewHTTPExecutor(HTTPOptions{}), Cached(mem, time.Minute, nil))

	req, err := NewRequest(http.MethodGet, server.URL+"/tasks", nil)
	require.NoError(t, err)
	get(t, exec, req.URL)

	ok, err := mem.Exists(context.Background(), cache.Key(req.Method, req.URL, req.Header))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInstrumented(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	exec := Chain(ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: http.StatusOK}, nil
	}), Instrumented(m, "http://api"))

	get(t, exec, "http://api/tasks/1")
	get(t, exec, "http://api/tasks?page=2")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "tasks", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))
}

func TestLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	exec := Chain(ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
		if req.Method == http.MethodDelete {
			return &Response{StatusCode: http.StatusPreconditionFailed}, NewRemoteError(http.StatusPreconditionFailed, nil)
		}
		return &Response{StatusCode: http.StatusOK}, nil
	}), Logged(zap.New(core)))

	get(t, exec, "http://api/tasks")
	_, err := exec.Do(context.Background(), &Request{Method: http.MethodDelete, URL: "http://api/tasks/1"})
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(412), entries[1].ContextMap()["status"])
}

func TestInstrumentedEndpointPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	exec := Chain(ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: http.StatusOK}, nil
	}), Instrumented(m, "http://h/api/"))

	get(t, exec, "http://h/api/tasks/1")
	get(t, exec, "http://h/api/people?page=2")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "tasks", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "people", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "api", "200")))
}

func TestResourceLabel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		base string
		want string
	}{
		{"item", "http://api/tasks/5e1f", "", "tasks"},
		{"query", "http://api/tasks?page=1", "", "tasks"},
		{"root", "http://api", "", "/"},
		{"below base", "http://h/api/tasks/1", "api", "tasks"},
		{"below nested base", "http://h/v1/api/people?page=2", "v1/api", "people"},
		{"base itself", "http://h/api/", "api", "/"},
		{"outside base", "http://h/other/x", "api", "other"},
		{"base is only a prefix", "http://h/apix/tasks", "api", "apix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resourceLabel(tt.raw, tt.base))
		})
	}
}
