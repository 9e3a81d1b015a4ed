package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
)

// Builder collects the conditions, ordering and page size of a listing.
// Fields are checked against the resource schema; the first invalid one
// is reported by Values.
type Builder struct {
	resource   *schema.Resource
	conditions []*Condition
	orderBy    []string
	maxResults int
	errs       []error
}

// NewBuilder creates a builder for listings of res. A nil or schemaless
// resource accepts any field.
func NewBuilder(res *schema.Resource) *Builder {
	return &Builder{resource: res}
}

func (b *Builder) checkField(field string) bool {
	if field == "" {
		b.errs = append(b.errs, errors.New("empty field name"))
		return false
	}
	// meta fields such as _id and _updated are always queryable
	if strings.HasPrefix(field, "_") || b.resource == nil || len(b.resource.Fields) == 0 {
		return true
	}
	root, _, _ := strings.Cut(field, ".")
	if !b.resource.HasField(root) {
		b.errs = append(b.errs, fmt.Errorf("field %s does not exist on resource %s", root, b.resource.Name))
		return false
	}
	return true
}

// Where adds a condition. Conditions on different fields are combined with
// AND; several operators on one field form a range.
func (b *Builder) Where(field string, op Operator, value any) *Builder {
	if b.checkField(field) {
		b.conditions = append(b.conditions, &Condition{Field: field, Operator: op, Value: value})
	}
	return b
}

// WhereCondition adds a parsed condition
func (b *Builder) WhereCondition(c *Condition) *Builder {
	return b.Where(c.Field, c.Operator, c.Value)
}

// WhereIn adds a membership condition
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	return b.Where(field, OpIn, values)
}

// WhereNotIn adds a non-membership condition
func (b *Builder) WhereNotIn(field string, values ...any) *Builder {
	return b.Where(field, OpNotIn, values)
}

// OrderBy adds a sort key. A leading "-" sorts descending.
func (b *Builder) OrderBy(key string) *Builder {
	if b.checkField(strings.TrimPrefix(key, "-")) {
		b.orderBy = append(b.orderBy, key)
	}
	return b
}

// OrderByAsc adds an ascending sort key
func (b *Builder) OrderByAsc(field string) *Builder {
	return b.OrderBy(field)
}

// OrderByDesc adds a descending sort key
func (b *Builder) OrderByDesc(field string) *Builder {
	return b.OrderBy("-" + field)
}

// Limit sets the page size requested from the backend
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		b.errs = append(b.errs, fmt.Errorf("invalid page size %d", n))
		return b
	}
	b.maxResults = n
	return b
}

// Empty reports whether the builder adds nothing to a listing
func (b *Builder) Empty() bool {
	return len(b.conditions) == 0 && len(b.orderBy) == 0 && b.maxResults == 0 && len(b.errs) == 0
}

// Document returns the where document
func (b *Builder) Document() (map[string]any, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	doc := make(map[string]any, len(b.conditions))
	for _, c := range b.conditions {
		existing, seen := doc[c.Field]
		if c.Operator == OpEqual {
			if seen {
				return nil, fmt.Errorf("conflicting conditions on %s", c.Field)
			}
			doc[c.Field] = c.Value
			continue
		}
		ops, isOps := existing.(map[string]any)
		if seen && !isOps {
			return nil, fmt.Errorf("conflicting conditions on %s", c.Field)
		}
		if ops == nil {
			ops = make(map[string]any)
			doc[c.Field] = ops
		}
		if _, dup := ops[c.Operator.Mongo()]; dup {
			return nil, fmt.Errorf("conflicting conditions on %s", c.Field)
		}
		ops[c.Operator.Mongo()] = c.Value
	}
	return doc, nil
}

// Values encodes the listing parameters
func (b *Builder) Values() (url.Values, error) {
	doc, err := b.Document()
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	if len(doc) > 0 {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		v.Set("where", string(data))
	}
	if len(b.orderBy) > 0 {
		v.Set("sort", strings.Join(b.orderBy, ","))
	}
	if b.maxResults > 0 {
		v.Set("max_results", strconv.Itoa(b.maxResults))
	}
	return v, nil
}

// Clone returns an independent copy of the builder
func (b *Builder) Clone() *Builder {
	return &Builder{
		resource:   b.resource,
		conditions: append([]*Condition(nil), b.conditions...),
		orderBy:    append([]string(nil), b.orderBy...),
		maxResults: b.maxResults,
		errs:       append([]error(nil), b.errs...),
	}
}
