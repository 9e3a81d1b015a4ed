// Package query builds the where and sort parameters of collection listings
package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
)

// String returns the command line form of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "in"
	case OpNotIn:
		return "nin"
	default:
		return "unknown"
	}
}

// Mongo returns the operator key used in a where document. Equality has
// none: the value is given directly.
func (o Operator) Mongo() string {
	switch o {
	case OpNotEqual:
		return "$ne"
	case OpGreaterThan:
		return "$gt"
	case OpGreaterThanOrEqual:
		return "$gte"
	case OpLessThan:
		return "$lt"
	case OpLessThanOrEqual:
		return "$lte"
	case OpIn:
		return "$in"
	case OpNotIn:
		return "$nin"
	default:
		return ""
	}
}

// Condition represents one where condition
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// operators are tried in order, two character forms first
var operators = []struct {
	token string
	op    Operator
}{
	{"!=", OpNotEqual},
	{">=", OpGreaterThanOrEqual},
	{"<=", OpLessThanOrEqual},
	{"=", OpEqual},
	{">", OpGreaterThan},
	{"<", OpLessThan},
}

// ParseCondition reads a condition written as field<op>value, for example
// points>=3 or title!=draft. Values are decoded as JSON when they parse, so
// that 3 and true keep their type; anything else is a string.
func ParseCondition(expr string) (*Condition, error) {
	idx := strings.IndexAny(expr, "!=<>")
	if idx <= 0 {
		return nil, fmt.Errorf("invalid condition %q, expected field<op>value", expr)
	}
	field, rest := strings.TrimSpace(expr[:idx]), expr[idx:]
	for _, o := range operators {
		if raw, ok := strings.CutPrefix(rest, o.token); ok {
			return &Condition{Field: field, Operator: o.op, Value: parseLiteral(raw)}, nil
		}
	}
	return nil, fmt.Errorf("invalid operator in condition %q", expr)
}

func parseLiteral(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
