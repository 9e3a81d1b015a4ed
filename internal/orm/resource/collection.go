package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/query"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/transport"
)

// Fetch progress milestones
const (
	ProgressStarted  = 25
	ProgressReceived = 50
	ProgressDecoded  = 90
	ProgressDone     = 100
)

// maxPages bounds pagination against backends whose next link never ends
const maxPages = 1000

// Collection is the ordered set of resources of one endpoint
type Collection struct {
	schema    *schema.Resource
	opts      Options
	logger    *zap.Logger
	resources []*Resource
	query     *query.Builder
}

// NewCollection creates an empty collection of res documents
func NewCollection(res *schema.Resource, opts Options) *Collection {
	name := ""
	if res != nil {
		name = res.Name
	}
	return &Collection{
		schema: res,
		opts:   opts,
		logger: opts.logger().With(zap.String("collection", name)),
	}
}

// Name returns the resource type name
func (c *Collection) Name() string {
	if c.schema == nil {
		return ""
	}
	return c.schema.Name
}

func (c *Collection) Schema() *schema.Resource { return c.schema }

// Resources returns the resources in order
func (c *Collection) Resources() []*Resource {
	out := make([]*Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

func (c *Collection) Len() int { return len(c.resources) }

// Load appends one resource per item
func (c *Collection) Load(items []map[string]any) error {
	for i, item := range items {
		r, err := New(c.schema, item, c.opts)
		if err != nil {
			return fmt.Errorf("load item %d: %w", i, err)
		}
		c.resources = append(c.resources, r)
	}
	return nil
}

// New appends a resource holding the schema's default data
func (c *Collection) New() (*Resource, error) {
	r, err := New(c.schema, nil, c.opts)
	if err != nil {
		return nil, err
	}
	c.resources = append(c.resources, r)
	return r, nil
}

// Remove drops r from the collection without any request
func (c *Collection) Remove(r *Resource) bool {
	for i, cur := range c.resources {
		if cur == r {
			c.resources = append(c.resources[:i], c.resources[i+1:]...)
			return true
		}
	}
	return false
}

// Delete deletes r on the backend, then removes it from the collection
func (c *Collection) Delete(ctx context.Context, r *Resource) error {
	if _, err := r.Delete(ctx); err != nil {
		return err
	}
	c.Remove(r)
	return nil
}

// Clear empties the collection
func (c *Collection) Clear() { c.resources = nil }

// SavedCount returns how many resources have a backend identity
func (c *Collection) SavedCount() int {
	n := 0
	for _, r := range c.resources {
		if !r.HasCreated() {
			n++
		}
	}
	return n
}

// HasUpdated reports whether any resource holds unsaved edits
func (c *Collection) HasUpdated() bool {
	for _, r := range c.resources {
		if r.HasUpdated() {
			return true
		}
	}
	return false
}

// Reset drops the unsaved edits of every resource
func (c *Collection) Reset() {
	for _, r := range c.resources {
		r.Reset()
	}
}

// SetState moves every resource to s
func (c *Collection) SetState(s State) {
	for _, r := range c.resources {
		r.SetState(s)
	}
}

// SetQuery filters and orders the listings of the next fetches. nil
// clears it.
func (c *Collection) SetQuery(q *query.Builder) {
	c.query = q
}

// URL returns the collection endpoint, with the listing parameters of the
// query if one is set
func (c *Collection) URL() (string, error) {
	base := strings.TrimRight(c.opts.Endpoint, "/")
	if base == "" {
		return "", &MissingDependencyError{Resource: c.Name(), Dependency: "endpoint"}
	}
	if c.Name() == "" {
		return "", &MissingDependencyError{Dependency: "name"}
	}
	u := base + "/" + c.Name()
	if c.query == nil {
		return u, nil
	}
	params, err := c.query.Values()
	if err != nil {
		return "", fmt.Errorf("invalid query on %s: %w", c.Name(), err)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u, nil
}

// Fetch replaces the content with the backend listing, following pagination
// links. progress, which may be nil, receives coarse milestones and 0 on
// failure.
func (c *Collection) Fetch(ctx context.Context, progress func(int)) error {
	report := func(p int) {
		if progress != nil {
			progress(p)
		}
	}

	next, err := c.URL()
	if err != nil {
		return err
	}
	if c.opts.Executor == nil {
		return &MissingDependencyError{Resource: c.Name(), Dependency: "executor"}
	}

	c.Clear()
	report(ProgressStarted)

	var items []map[string]any
	for page := 0; next != "" && page < maxPages; page++ {
		pageItems, link, err := c.fetchPage(ctx, next)
		if err != nil {
			report(0)
			return err
		}
		if page == 0 {
			report(ProgressReceived)
		}
		items = append(items, pageItems...)
		if link == next {
			break
		}
		next = link
	}
	report(ProgressDecoded)

	if err := c.Load(items); err != nil {
		c.Clear()
		report(0)
		return err
	}
	c.logger.Debug("collection fetched", zap.Int("count", len(items)))
	report(ProgressDone)
	return nil
}

func (c *Collection) fetchPage(ctx context.Context, u string) ([]map[string]any, string, error) {
	req, err := transport.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.opts.Executor.Do(ctx, req)
	if err != nil {
		return nil, "", err
	}

	var body any
	if err := resp.Decode(&body); err != nil {
		return nil, "", err
	}

	var raw []any
	next := ""
	switch v := body.(type) {
	case []any:
		raw = v
	case map[string]any:
		raw, _ = v["_items"].([]any)
		next = c.nextLink(v)
	default:
		return nil, "", fmt.Errorf("fetch %s: unexpected listing %T", c.Name(), body)
	}

	items := make([]map[string]any, 0, len(raw))
	for i, it := range raw {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("fetch %s: item %d is %T, not an object", c.Name(), i, it)
		}
		items = append(items, m)
	}
	return items, next, nil
}

// nextLink resolves _links.next.href against the endpoint base
func (c *Collection) nextLink(doc map[string]any) string {
	links, _ := doc["_links"].(map[string]any)
	nxt, _ := links["next"].(map[string]any)
	href, _ := nxt["href"].(string)
	if href == "" {
		return ""
	}
	base, err := url.Parse(strings.TrimRight(c.opts.Endpoint, "/") + "/")
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// Save creates the new resources and updates the edited ones. Requests run
// concurrently; failures are collected into a *BatchError and do not stop
// the other resources.
func (c *Collection) Save(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(c.resources))

	for i, r := range c.resources {
		wg.Add(1)
		go func(i int, r *Resource) {
			defer wg.Done()
			if _, err := r.Create(ctx); err != nil {
				errs[i] = fmt.Errorf("create %s: %w", r.Title(), err)
				return
			}
			if _, err := r.Update(ctx); err != nil {
				errs[i] = fmt.Errorf("update %s: %w", r.Title(), err)
			}
		}(i, r)
	}
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		c.logger.Warn("collection save incomplete",
			zap.Int("failed", len(failed)),
			zap.Int("total", len(c.resources)),
		)
		return &BatchError{Total: len(c.resources), Errors: failed}
	}
	return nil
}
