package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/resource"
)

// formatValue renders a field value for a table cell
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

// parseAssignments reads key=value pairs. Values are decoded as JSON when
// they parse, so that 3, true or ["a"] keep their type; anything else is a
// string.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

// parseDocument reads a JSON object given on the command line
func parseDocument(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid --data: %w", err)
	}
	return doc, nil
}

// apply sets every value of doc on r
func apply(r *resource.Resource, doc map[string]any) error {
	for key, v := range doc {
		if err := r.Set(key, v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}
