package field

import (
	"fmt"
	"net/http"
	"time"
)

// Datetime holds an instant. Its wire form is the HTTP date format used by
// the backend, always in GMT.
type Datetime struct {
	scalar[time.Time, datetimeKind]
}

// layouts accepted when loading a datetime from text, most specific first
var layouts = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC850,
	time.ANSIC,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type datetimeKind struct{}

func (datetimeKind) convert(f *base, v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return now(), nil
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return now(), nil
		}
		return *t, nil
	case string:
		if t == "" {
			return now(), nil
		}
		return parseTime(f, t)
	default:
		return time.Time{}, fmt.Errorf("%w for datetime field %q: %T", ErrUnhandledType, f.Path(), v)
	}
}

func (datetimeKind) copy(v time.Time) time.Time { return v }
func (datetimeKind) equal(a, b time.Time) bool { return a.Equal(b) }
func (datetimeKind) validate(*base, time.Time) error { return nil }

func (datetimeKind) clean(_ *base, v time.Time) (any, error) {
	return v.UTC().Format(http.TimeFormat), nil
}

func parseTime(f *base, s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w for datetime field %q: cannot parse %q", ErrUnhandledType, f.Path(), s)
}

// now is the default instant of a fresh datetime field
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
