package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cache"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/field"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

const (
	notFoundMessage   = "The requested URL was not found on the server."
	badRequestMessage = "The browser (or proxy) sent a request that this server could not understand."
)

func link(title, href string) map[string]any {
	return map[string]any{"title": title, "href": href}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	children := make([]any, len(names))
	for i, name := range names {
		children[i] = link(name, name)
	}
	renderJSON(w, http.StatusOK, map[string]any{"_links": map[string]any{"child": children}})
}

// resource resolves the {resource} route parameter, rendering a 404 for
// names the registry does not know
func (s *Server) resource(w http.ResponseWriter, r *http.Request) (*schema.Resource, bool) {
	res, err := s.registry.Get(chi.URLParam(r, "resource"))
	if err != nil {
		renderError(w, http.StatusNotFound, notFoundMessage)
		return nil, false
	}
	return res, true
}

func (s *Server) document(w http.ResponseWriter, r *http.Request, res *schema.Resource) (map[string]any, bool) {
	doc, ok := s.store.get(res.Name, chi.URLParam(r, "id"))
	if !ok {
		renderError(w, http.StatusNotFound, notFoundMessage)
		return nil, false
	}
	return doc, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var where map[string]any
	if raw := q.Get("where"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &where); err != nil {
			renderError(w, http.StatusBadRequest, "Unable to parse `where` clause")
			return
		}
	}
	var sortKeys []string
	if raw := q.Get("sort"); raw != "" {
		sortKeys = strings.Split(raw, ",")
	}
	page := positiveInt(q.Get("page"), 1)
	maxResults := positiveInt(q.Get("max_results"), s.pageSize)

	docs := s.store.list(res.Name, where, sortKeys)
	total := len(docs)
	start := min((page-1)*maxResults, total)
	end := min(start+maxResults, total)

	links := map[string]any{
		"parent": link("home", "/"),
		"self":   link(res.Name, res.Name),
	}
	if end < total {
		last := (total + maxResults - 1) / maxResults
		links["next"] = link("next page", pageHref(res.Name, q, page+1))
		links["last"] = link("last page", pageHref(res.Name, q, last))
	}
	if page > 1 {
		links["prev"] = link("previous page", pageHref(res.Name, q, page-1))
	}

	items := make([]map[string]any, 0, end-start)
	for _, doc := range docs[start:end] {
		items = append(items, withSelfLink(res.Name, doc))
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"_items": items,
		"_links": links,
		"_meta":  map[string]any{"page": page, "max_results": maxResults, "total": total},
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}

	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderError(w, http.StatusBadRequest, badRequestMessage)
		return
	}

	var docs []map[string]any
	bulk := false
	switch v := body.(type) {
	case map[string]any:
		docs = []map[string]any{v}
	case []any:
		bulk = true
		for _, item := range v {
			doc, ok := item.(map[string]any)
			if !ok {
				renderError(w, http.StatusBadRequest, badRequestMessage)
				return
			}
			docs = append(docs, doc)
		}
	default:
		renderError(w, http.StatusBadRequest, badRequestMessage)
		return
	}

	failed := 0
	var firstIssues map[string]string
	for _, doc := range docs {
		issues := s.validate(res, doc, false)
		if id, ok := doc["_id"].(string); ok {
			if _, exists := s.store.get(res.Name, id); exists {
				issues["_id"] = fmt.Sprintf("value '%s' is not unique", id)
			}
		}
		if len(issues) > 0 {
			failed++
			if firstIssues == nil {
				firstIssues = issues
			}
		}
	}
	if failed > 0 {
		s.logger.Debug("insertion rejected", zap.String("resource", res.Name), zap.Int("failed", failed))
		renderIssues(w, fmt.Sprintf("Insertion failure: %d document(s) contain(s) error(s)", failed), firstIssues)
		return
	}

	results := make([]any, len(docs))
	for i, doc := range docs {
		stored := s.store.insert(res.Name, doc)
		s.publish(EventInserted, res.Name, stored)
		results[i] = writeResult(res.Name, stored)
	}
	if bulk {
		renderJSON(w, http.StatusCreated, map[string]any{"_status": "OK", "_items": results})
		return
	}
	renderJSON(w, http.StatusCreated, results[0])
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	doc, ok := s.document(w, r, res)
	if !ok {
		return
	}

	etag, _ := doc["_etag"].(string)
	w.Header().Set("ETag", `"`+etag+`"`)
	if updated, ok := doc["_updated"].(string); ok {
		w.Header().Set("Last-Modified", updated)
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && cache.MatchesETag(etag, cache.ParseETags(inm)) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	renderJSON(w, http.StatusOK, withSelfLink(res.Name, doc))
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, false)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, true)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, replace bool) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	doc, ok := s.document(w, r, res)
	if !ok {
		return
	}
	if !s.precondition(w, r, doc) {
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		renderError(w, http.StatusBadRequest, badRequestMessage)
		return
	}
	if issues := s.validate(res, patch, !replace); len(issues) > 0 {
		renderIssues(w, "Update failure: the document contains error(s)", issues)
		return
	}

	updated, ok := s.store.update(res.Name, doc["_id"].(string), patch, replace)
	if !ok {
		renderError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	if replace {
		s.publish(EventReplaced, res.Name, updated)
	} else {
		s.publish(EventUpdated, res.Name, updated)
	}
	renderJSON(w, http.StatusOK, writeResult(res.Name, updated))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	doc, ok := s.document(w, r, res)
	if !ok {
		return
	}
	if !s.precondition(w, r, doc) {
		return
	}
	s.store.remove(res.Name, doc["_id"].(string))
	s.publish(EventDeleted, res.Name, doc)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	s.store.drop(res.Name)
	s.events.Publish(Event{Type: EventDropped, Resource: res.Name})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) publish(typ, resource string, doc map[string]any) {
	id, _ := doc["_id"].(string)
	etag, _ := doc["_etag"].(string)
	s.events.Publish(Event{Type: typ, Resource: resource, ID: id, ETag: etag})
}

// precondition enforces If-Match on writes
func (s *Server) precondition(w http.ResponseWriter, r *http.Request, doc map[string]any) bool {
	header := r.Header.Get("If-Match")
	if header == "" {
		if s.requireIfMatch {
			renderError(w, http.StatusPreconditionRequired,
				"To edit a document its etag must be provided using the If-Match header")
			return false
		}
		return true
	}
	etag, _ := doc["_etag"].(string)
	if !cache.MatchesETag(etag, cache.ParseETags(header)) {
		renderError(w, http.StatusPreconditionFailed, "Client and server etags don't match")
		return false
	}
	return true
}

// validate checks doc against the resource schema and returns the issues
// keyed by field name. partial skips the required-field check.
func (s *Server) validate(res *schema.Resource, doc map[string]any, partial bool) map[string]string {
	issues := map[string]string{}
	builder := field.NewBuilder(s.registry)
	open := len(res.Fields) == 0

	for key, value := range doc {
		if isMeta(key) {
			continue
		}
		def, ok := res.Field(key)
		if !ok {
			if !open {
				issues[key] = "unknown field"
			}
			continue
		}
		f, err := builder.Build(def, value)
		if err == nil {
			err = f.Validate()
		}
		if err != nil {
			issues[key] = issueMessage(err)
		}
	}

	if !partial {
		for _, def := range res.Fields {
			if _, ok := doc[def.Name]; !ok && def.Required {
				issues[def.Name] = "required field"
			}
		}
	}
	return issues
}

func issueMessage(err error) string {
	var ve *field.ValidationError
	if errors.As(err, &ve) && len(ve.Messages) > 0 {
		return strings.Join(ve.Messages, "; ")
	}
	return err.Error()
}

// writeResult is the meta envelope answered to creates and updates
func writeResult(name string, doc map[string]any) map[string]any {
	out := map[string]any{"_status": "OK"}
	for _, key := range []string{"_id", "_etag", "_created", "_updated"} {
		if v, ok := doc[key]; ok {
			out[key] = v
		}
	}
	out["_links"] = map[string]any{"self": link(name, fmt.Sprintf("%s/%v", name, doc["_id"]))}
	return out
}

func withSelfLink(name string, doc map[string]any) map[string]any {
	doc["_links"] = map[string]any{"self": link(name, fmt.Sprintf("%s/%v", name, doc["_id"]))}
	return doc
}

func pageHref(name string, q url.Values, page int) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = v
	}
	next.Set("page", strconv.Itoa(page))
	return name + "?" + next.Encode()
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
