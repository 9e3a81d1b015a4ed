package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// NoDetails is the message of a remote error whose body explains nothing
const NoDetails = "No details found!"

// RemoteError is a failed backend request. Messages are extracted from
// the error shapes the backend uses: _issues (a map of field messages or a
// list), _error {code, message}, description or message.
type RemoteError struct {
	StatusCode int
	Title      string
	Messages   []string
}

// NewRemoteError builds the error for a response body
func NewRemoteError(status int, body []byte) *RemoteError {
	e := &RemoteError{
		StatusCode: status,
		Title:      fmt.Sprintf("%d %s", status, http.StatusText(status)),
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err == nil {
		e.Messages = extractMessages(doc)
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		e.Messages = []string{text}
	}
	if len(e.Messages) == 0 {
		e.Messages = []string{NoDetails}
	}
	return e
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %s: %s", e.Title, strings.Join(e.Messages, "; "))
}

func extractMessages(doc any) []string {
	switch t := doc.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case []any:
		return issueList(t)
	case map[string]any:
		var msgs []string
		if issues, ok := t["_issues"]; ok {
			msgs = append(msgs, issueMessages(issues)...)
		}
		if e, ok := t["_error"].(map[string]any); ok {
			if m, ok := e["message"].(string); ok && m != "" {
				msgs = append(msgs, m)
			}
		} else if s, ok := t["_error"].(string); ok && s != "" {
			msgs = append(msgs, s)
		}
		if len(msgs) > 0 {
			return msgs
		}
		for _, key := range []string{"description", "message"} {
			if s, ok := t[key].(string); ok && s != "" {
				return []string{s}
			}
		}
	}
	return nil
}

// issueMessages flattens _issues. Field maps become "field: message"
// entries in key order.
func issueMessages(issues any) []string {
	switch t := issues.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var msgs []string
		for _, k := range keys {
			for _, m := range issueMessages(t[k]) {
				msgs = append(msgs, k+": "+m)
			}
		}
		return msgs
	case []any:
		return issueList(t)
	case string:
		return []string{t}
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(t)}
	}
}

func issueList(items []any) []string {
	var msgs []string
	for _, item := range items {
		msgs = append(msgs, issueMessages(item)...)
	}
	return msgs
}

// IsRemote returns true if err is a RemoteError
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// StatusCode returns the status of a remote error, or 0
func StatusCode(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// IsNotFound returns true if the error is a 404
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsPreconditionFailed returns true if the error is a 412, the answer to
// an update or delete carrying a stale etag
func IsPreconditionFailed(err error) bool {
	return StatusCode(err) == http.StatusPreconditionFailed
}
