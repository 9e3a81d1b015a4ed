package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cache"
)

// entry is a cached response along with its validators
type entry struct {
	StatusCode   int         `json:"status"`
	Header       http.Header `json:"header"`
	Body         []byte      `json:"body"`
	ETag         string      `json:"etag,omitempty"`
	LastModified string      `json:"last_modified,omitempty"`
}

type cached struct {
	next   Executor
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// Cached stores GET responses that carry an ETag or Last-Modified and
// revalidates them with conditional requests. A 304 answer is served from
// the cache. Any successful write clears the cache. Cache failures are
// logged and never fail the request.
func Cached(c cache.Cache, ttl time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Executor) Executor {
		return &cached{next: next, cache: c, ttl: ttl, logger: logger}
	}
}

func (c *cached) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Method != http.MethodGet {
		resp, err := c.next.Do(ctx, req)
		if err == nil {
			if cerr := c.cache.Clear(ctx); cerr != nil {
				c.logger.Warn("cache invalidation failed", zap.Error(cerr))
			}
		}
		return resp, err
	}

	key := cache.Key(req.Method, req.URL, req.Header)
	stored, ok := c.lookup(ctx, key)
	if ok {
		req = req.Clone()
		if stored.ETag != "" {
			req.Header.Set("If-None-Match", stored.ETag)
		}
		if stored.LastModified != "" {
			req.Header.Set("If-Modified-Since", stored.LastModified)
		}
	}

	resp, err := c.next.Do(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusNotModified && ok {
		c.logger.Debug("cache revalidated", zap.String("url", req.URL))
		return &Response{
			StatusCode: stored.StatusCode,
			Header:     stored.Header.Clone(),
			Body:       append([]byte(nil), stored.Body...),
		}, nil
	}

	if resp.StatusCode == http.StatusOK {
		c.store(ctx, key, resp)
	}
	return resp, nil
}

func (c *cached) lookup(ctx context.Context, key string) (*entry, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	return &e, true
}

func (c *cached) store(ctx context.Context, key string, resp *Response) {
	e := entry{
		StatusCode:   resp.StatusCode,
		Header:       resp.Header,
		Body:         resp.Body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if e.ETag == "" && e.LastModified == "" {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}
