// Package transport issues the requests of resources and collections.
// Executors are safe for concurrent use and may be decorated with caching,
// metrics and logging.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Request is one backend call
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest creates a request with payload encoded as the JSON body. A nil
// payload sends no body.
func NewRequest(method, url string, payload any) (*Request, error) {
	req := &Request{Method: method, URL: url, Header: make(http.Header)}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		req.Body = body
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Clone returns a deep copy of the request
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Body = append([]byte(nil), r.Body...)
	return &c
}

// Response is the backend answer to a Request
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Document decodes a JSON object body. An empty body yields an empty map.
func (r *Response) Document() (map[string]any, error) {
	doc := map[string]any{}
	if err := r.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Executor sends requests to the backend. Implementations return a
// *RemoteError for responses with an error status.
type Executor interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, req *Request) (*Response, error)

// Do implements Executor
func (f ExecutorFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware decorates an Executor
type Middleware func(Executor) Executor

// Chain wraps e with mws. The first middleware is the outermost.
func Chain(e Executor, mws ...Middleware) Executor {
	for i := len(mws) - 1; i >= 0; i-- {
		e = mws[i](e)
	}
	return e
}
