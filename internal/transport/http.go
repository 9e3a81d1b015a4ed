package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOptions configures an HTTPExecutor
type HTTPOptions struct {
	// Timeout bounds every request. Default: 10s
	Timeout time.Duration
	// APIKey is sent as a bearer token when set
	APIKey string
	// Username and Password are sent as basic credentials when no APIKey
	// is set
	Username string
	Password string
	// Headers are added to every request
	Headers map[string]string
	// Client replaces the default client; Timeout is then ignored
	Client *http.Client
}

// HTTPExecutor sends requests over HTTP
type HTTPExecutor struct {
	client   *http.Client
	apiKey   string
	username string
	password string
	headers  map[string]string
}

// NewHTTPExecutor creates a new HTTP executor
func NewHTTPExecutor(opts HTTPOptions) *HTTPExecutor {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPExecutor{
		client:   client,
		apiKey:   opts.APIKey,
		username: opts.Username,
		password: opts.Password,
		headers:  opts.Headers,
	}
}

// Do sends the request. Error statuses come back as a *RemoteError along
// with the response; 304 Not Modified is not an error.
func (e *HTTPExecutor) Do(ctx context.Context, r *Request) (*Response, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Authorization") == "" {
		switch {
		case e.apiKey != "":
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		case e.username != "":
			req.SetBasicAuth(e.username, e.password)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}
	if resp.StatusCode >= 400 {
		return out, NewRemoteError(resp.StatusCode, data)
	}
	return out, nil
}
