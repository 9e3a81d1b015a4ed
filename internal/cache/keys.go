package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// varyHeaders are the request headers that select a different representation
var varyHeaders = []string{"Accept", "Accept-Encoding", "Authorization"}

// Key derives the cache key of a request from its method, URL (query
// parameters sorted) and the headers that change the representation
func Key(method, rawURL string, header http.Header) string {
	parts := []string{method, normalizeURL(rawURL)}

	var headerParts []string
	for _, name := range varyHeaders {
		if v := header.Get(name); v != "" {
			headerParts = append(headerParts, name+"="+v)
		}
	}
	if len(headerParts) > 0 {
		parts = append(parts, strings.Join(headerParts, "|"))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return "http:" + hex.EncodeToString(hash[:16])
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for j, v := range values {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	u.RawQuery = b.String()
	return u.String()
}
