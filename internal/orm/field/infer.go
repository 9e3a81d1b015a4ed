package field

import (
	"net/http"
	"time"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

// detector recognizes raw values of one field type
type detector struct {
	typ    schema.Type
	detect func(v any) bool
}

// detectors are tried in order; the first match wins
var detectors = []detector{
	{schema.TypeBoolean, func(v any) bool { _, ok := v.(bool); return ok }},
	{schema.TypeNumber, func(v any) bool { _, ok := toFloat(v); return ok }},
	{schema.TypePoint, isGeoJSONPoint},
	{schema.TypeDict, func(v any) bool { _, ok := v.(map[string]any); return ok }},
	{schema.TypeList, func(v any) bool { _, ok := v.([]any); return ok }},
	{schema.TypeDatetime, isHTTPDate},
	{schema.TypeString, func(v any) bool { _, ok := v.(string); return ok }},
	{schema.TypeDatetime, func(v any) bool { _, ok := v.(time.Time); return ok }},
	{schema.TypeMedia, func(v any) bool { _, ok := v.(MediaFile); return ok }},
}

// InferType returns the field type for a raw value of an untyped container.
// Null and unrecognized values are left to a Poly.
func InferType(v any) (schema.Type, bool) {
	if v == nil {
		return "", false
	}
	for _, d := range detectors {
		if d.detect(v) {
			return d.typ, true
		}
	}
	return "", false
}

func isGeoJSONPoint(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || m["type"] != "Point" {
		return false
	}
	c, ok := m["coordinates"].([]any)
	if !ok {
		return false
	}
	_, ok = coordinates(c)
	return ok
}

// isHTTPDate matches the backend's own date format only, so other strings
// round-trip unchanged
func isHTTPDate(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := time.Parse(http.TimeFormat, s)
	return err == nil
}
