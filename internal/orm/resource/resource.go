// Package resource binds backend documents to field trees and drives their
// lifecycle against the REST backend: create, read, update and delete, with
// dirty tracking deciding which requests are worth sending.
package resource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/field"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/tracking"
	"github.com/nam4dev/apy-rest2front-sub001/internal/transport"
)

// Backend meta keys
const (
	KeyID      = "_id"
	KeyETag    = "_etag"
	KeyLinks   = "_links"
	KeyCreated = "_created"
	KeyUpdated = "_updated"
	KeyDeleted = "_deleted"
)

// Options carries the collaborators of resources and collections
type Options struct {
	// Endpoint is the backend base URL, e.g. http://localhost:5000/api
	Endpoint string
	Executor transport.Executor
	// Schemas resolves embedded relations. It may be nil.
	Schemas field.Schemas
	Logger  *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Meta is the backend bookkeeping of a document
type Meta struct {
	ID      string
	ETag    string
	Links   map[string]any
	Created time.Time
	Updated time.Time
	Deleted bool
}

// Resource is one backend document: a root dict of fields plus meta
type Resource struct {
	schema *schema.Resource
	body   *field.Nested
	meta   Meta
	state  State

	endpoint string
	exec     transport.Executor
	logger   *zap.Logger
}

// New builds a resource of type res from a raw document. Meta keys are
// extracted from data. A document with an ID starts in READ, any other in
// CREATE.
func New(res *schema.Resource, data map[string]any, opts Options) (*Resource, error) {
	if res == nil {
		return nil, &MissingDependencyError{Dependency: "schema"}
	}
	r := &Resource{
		schema:   res,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		exec:     opts.Executor,
		logger:   opts.logger().With(zap.String("resource", res.Name)),
	}
	r.mergeMeta(data)

	body, err := field.NewBuilder(opts.Schemas).BuildResource(res, r.stripMeta(data), r)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", res.Name, err)
	}
	r.body = body

	r.state = StateCreate
	if r.meta.ID != "" {
		r.state = StateRead
	}
	return r, nil
}

// Name returns the resource type name
func (r *Resource) Name() string { return r.schema.Name }

// Type returns the resource component type
func (r *Resource) Type() schema.Type { return schema.TypeResource }

// Parent returns nil, resources are roots
func (r *Resource) Parent() field.Container { return nil }

// Path returns the resource name, the prefix of every field path
func (r *Resource) Path() string { return r.schema.Name }

// Children returns the top-level fields
func (r *Resource) Children() []field.Field { return r.body.Children() }

// Replace swaps a top-level field
func (r *Resource) Replace(old, nu field.Field) bool { return r.body.Replace(old, nu) }

// EnsurePoly keeps the pending slot of schemaless resources
func (r *Resource) EnsurePoly() { r.body.EnsurePoly() }

// Schema returns the resource descriptor
func (r *Resource) Schema() *schema.Resource { return r.schema }

// Body returns the root dict
func (r *Resource) Body() *field.Nested { return r.body }

// Field returns the top-level field with the given name
func (r *Resource) Field(name string) (field.Field, bool) { return r.body.Child(name) }

// Set assigns a raw value to a top-level field
func (r *Resource) Set(name string, v any) error { return r.body.Set(name, v) }

// Value returns the document content without meta
func (r *Resource) Value() map[string]any { return r.body.Value().(map[string]any) }

func (r *Resource) Meta() Meta { return r.meta }

// ID returns the backend identity, empty until created
func (r *Resource) ID() string { return r.meta.ID }

func (r *Resource) ETag() string { return r.meta.ETag }

func (r *Resource) State() State { return r.state }

func (r *Resource) SetState(s State) { r.state = s }

// HasCreated reports whether the resource still needs to be created, that
// is whether the backend has not assigned it an ID yet
func (r *Resource) HasCreated() bool { return r.meta.ID == "" }

// HasUpdated reports whether any field differs from its baseline
func (r *Resource) HasUpdated() bool { return r.body.HasUpdated() }

// Validate checks every field
func (r *Resource) Validate() error { return r.body.Validate() }

// CleanedData returns the wire form of the whole document
func (r *Resource) CleanedData() (map[string]any, error) {
	c, err := r.body.CleanedData()
	if err != nil {
		return nil, err
	}
	return c.(map[string]any), nil
}

// DirtyData returns the wire form of the updated top-level fields only
func (r *Resource) DirtyData() (map[string]any, error) {
	if err := r.body.Validate(); err != nil {
		return nil, err
	}
	out := map[string]any{}
	for _, name := range r.body.Keys() {
		f, _ := r.body.Child(name)
		if !f.HasUpdated() {
			continue
		}
		c, err := f.CleanedData()
		if err != nil {
			return nil, err
		}
		out[name] = c
	}
	return out, nil
}

// Changes lists the top-level fields differing from the baseline
func (r *Resource) Changes() []tracking.FieldChange {
	return tracking.NewChangeTracker(r.body.MemoValue(), r.Value()).Changes()
}

// Title returns a human label: the item title field when set, else the ID
func (r *Resource) Title() string {
	if t := r.schema.ItemTitle; t != "" {
		if f, ok := r.body.Child(t); ok && f.Value() != nil {
			if s := fmt.Sprint(f.Value()); s != "" {
				return s
			}
		}
	}
	if r.meta.ID != "" {
		return r.meta.ID
	}
	return "new " + r.schema.Name
}

// URL returns the item URL of a persisted resource, or the collection URL
func (r *Resource) URL() (string, error) {
	if r.endpoint == "" {
		return "", &MissingDependencyError{Resource: r.schema.Name, Dependency: "endpoint"}
	}
	if r.schema.Name == "" {
		return "", &MissingDependencyError{Dependency: "name"}
	}
	u := r.endpoint + "/" + r.schema.Name
	if r.meta.ID != "" {
		u += "/" + r.meta.ID
	}
	return u, nil
}

func (r *Resource) ready() (string, error) {
	u, err := r.URL()
	if err != nil {
		return "", err
	}
	if r.exec == nil {
		return "", &MissingDependencyError{Resource: r.schema.Name, Dependency: "executor"}
	}
	return u, nil
}

// Create posts the document when it is new and has content. It returns nil
// without a request otherwise.
func (r *Resource) Create(ctx context.Context) (*transport.Response, error) {
	u, err := r.ready()
	if err != nil {
		return nil, err
	}
	if !r.HasCreated() || !r.HasUpdated() {
		return nil, nil
	}
	payload, err := r.CleanedData()
	if err != nil {
		return nil, err
	}
	return r.send(ctx, http.MethodPost, u, payload, StateCreate)
}

// Update patches the updated fields of a persisted document. It returns nil
// without a request when nothing changed or the document is new.
func (r *Resource) Update(ctx context.Context) (*transport.Response, error) {
	u, err := r.ready()
	if err != nil {
		return nil, err
	}
	if r.HasCreated() || !r.HasUpdated() {
		return nil, nil
	}
	payload, err := r.DirtyData()
	if err != nil {
		return nil, err
	}
	return r.send(ctx, http.MethodPatch, u, payload, StateUpdate)
}

// Delete removes a persisted document. The resource stays in DELETE on
// success and returns to its previous state on failure.
func (r *Resource) Delete(ctx context.Context) (*transport.Response, error) {
	u, err := r.ready()
	if err != nil {
		return nil, err
	}
	if r.HasCreated() {
		return nil, nil
	}
	return r.send(ctx, http.MethodDelete, u, nil, StateDelete)
}

// Save creates or updates the document, whichever applies
func (r *Resource) Save(ctx context.Context) (*transport.Response, error) {
	if r.HasCreated() {
		return r.Create(ctx)
	}
	return r.Update(ctx)
}

// Reload replaces the document with the backend copy, dropping local edits
func (r *Resource) Reload(ctx context.Context) error {
	u, err := r.ready()
	if err != nil {
		return err
	}
	if r.HasCreated() {
		return nil
	}
	req, err := transport.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := r.exec.Do(ctx, req)
	if err != nil {
		return err
	}
	doc, err := resp.Document()
	if err != nil {
		return err
	}
	r.mergeMeta(doc)
	if err := r.body.SetValue(r.stripMeta(doc)); err != nil {
		return err
	}
	r.state = StateRead
	return nil
}

func (r *Resource) send(ctx context.Context, method, u string, payload any, next State) (*transport.Response, error) {
	req, err := transport.NewRequest(method, u, payload)
	if err != nil {
		return nil, err
	}
	if method != http.MethodPost && r.meta.ETag != "" {
		req.Header.Set("If-Match", r.meta.ETag)
	}

	prev := r.state
	r.state = next
	resp, err := r.exec.Do(ctx, req)
	if err != nil {
		r.state = prev
		r.logger.Debug("request failed", zap.String("method", method), zap.Error(err))
		return resp, err
	}

	if doc, derr := resp.Document(); derr == nil {
		r.mergeMeta(doc)
	}
	r.body.SelfCommit()

	if next == StateDelete {
		r.meta.Deleted = true
	} else {
		r.state = StateRead
	}
	r.logger.Debug("resource synced",
		zap.String("method", method),
		zap.String("id", r.meta.ID),
		zap.Stringer("state", r.state),
	)
	return resp, nil
}

// SelfUpdate merges a backend payload, meta keys included, and optionally
// commits it as the new baseline
func (r *Resource) SelfUpdate(payload map[string]any, commit bool) error {
	r.mergeMeta(payload)
	return r.body.SelfUpdate(r.stripMeta(payload), commit)
}

// SelfCommit makes the current content the new baseline
func (r *Resource) SelfCommit() { r.body.SelfCommit() }

// Reset drops every local edit
func (r *Resource) Reset() { r.body.Reset() }

func (r *Resource) mergeMeta(doc map[string]any) {
	if v, ok := doc[KeyID]; ok && v != nil {
		r.meta.ID = fmt.Sprint(v)
	}
	if v, ok := doc[KeyETag].(string); ok {
		r.meta.ETag = v
	}
	if v, ok := doc[KeyLinks].(map[string]any); ok {
		r.meta.Links = tracking.DeepCopyMap(v)
	}
	if t, ok := parseMetaTime(doc[KeyCreated]); ok {
		r.meta.Created = t
	}
	if t, ok := parseMetaTime(doc[KeyUpdated]); ok {
		r.meta.Updated = t
	}
	if v, ok := doc[KeyDeleted].(bool); ok {
		r.meta.Deleted = v
	}
}

// stripMeta drops underscore keys the schema does not declare
func (r *Resource) stripMeta(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if strings.HasPrefix(k, "_") && !r.schema.HasField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func parseMetaTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := http.ParseTime(t)
		return parsed, err == nil
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}
