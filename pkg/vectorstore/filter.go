package vectorstore

import (
	"fmt"
	"strconv"
)

// Range bounds a numeric payload field. Nil bounds are open.
type Range struct {
	Gt  *float64
	Gte *float64
	Lt  *float64
	Lte *float64
}

// Condition matches one payload field, either by equality (Match) or by
// numeric range.
type Condition struct {
	Key   string
	Match interface{}
	Range *Range
}

// Filter is a conjunction of conditions.
type Filter struct {
	Must []Condition
}

func MatchEq(key string, value interface{}) Condition {
	return Condition{Key: key, Match: value}
}

func MatchRange(key string, r Range) Condition {
	return Condition{Key: key, Range: &r}
}

// NewFilter returns nil when no conditions are given so callers can pass
// the result straight to Search.
func NewFilter(conditions ...Condition) *Filter {
	if len(conditions) == 0 {
		return nil
	}
	return &Filter{Must: conditions}
}

// Matches evaluates the filter against a payload. A nil filter matches
// everything.
func (f *Filter) Matches(payload map[string]interface{}) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !c.matches(payload) {
			return false
		}
	}
	return true
}

func (c Condition) matches(payload map[string]interface{}) bool {
	value, ok := payload[c.Key]
	if !ok || value == nil {
		return false
	}

	if c.Range != nil {
		n, ok := toFloat(value)
		if !ok {
			return false
		}
		r := c.Range
		if r.Gt != nil && !(n > *r.Gt) {
			return false
		}
		if r.Gte != nil && !(n >= *r.Gte) {
			return false
		}
		if r.Lt != nil && !(n < *r.Lt) {
			return false
		}
		if r.Lte != nil && !(n <= *r.Lte) {
			return false
		}
		return true
	}

	return ValuesEqual(value, c.Match)
}

// ValuesEqual compares payload values the way a JSON document store does:
// numbers compare numerically regardless of Go type, everything else by its
// string form.
func ValuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return MatchString(a) == MatchString(b)
}

// MatchString renders an equality operand the way Postgres ->> renders a
// JSON scalar.
func MatchString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
