package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateETag generates a strong ETag for the given content
func GenerateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf(`"%s"`, hex.EncodeToString(hash[:16]))
}

// ParseETags splits an If-Match or If-None-Match header into its entity
// tags. "*" is returned as a single entry.
func ParseETags(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}

	var etags []string
	for i := 0; i < len(header); {
		for i < len(header) && (header[i] == ' ' || header[i] == ',') {
			i++
		}
		if i >= len(header) {
			break
		}

		weak := false
		if strings.HasPrefix(header[i:], "W/") {
			weak = true
			i += 2
		}

		if i < len(header) && header[i] == '"' {
			start := i
			i++
			for i < len(header) && header[i] != '"' {
				i++
			}
			if i < len(header) {
				i++
				etag := header[start:i]
				if weak {
					etag = "W/" + etag
				}
				etags = append(etags, etag)
			}
			continue
		}

		// unquoted tags, as sent by clients echoing a bare _etag value
		start := i
		for i < len(header) && header[i] != ',' {
			i++
		}
		if tag := strings.TrimSpace(header[start:i]); tag != "" {
			etags = append(etags, tag)
		}
	}
	return etags
}

// MatchesETag checks if etag matches any of etags using weak comparison
func MatchesETag(etag string, etags []string) bool {
	if len(etags) == 1 && etags[0] == "*" {
		return true
	}
	want := opaque(etag)
	for _, e := range etags {
		if opaque(e) == want {
			return true
		}
	}
	return false
}

// opaque strips the weak marker and quotes of an entity tag
func opaque(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}
