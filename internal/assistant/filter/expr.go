// internal/assistant/filter/expr.go
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrUnsupportedOperator = errors.New("UNSUPPORTED_OPERATOR")
	ErrInvalidMatchSpec    = errors.New("INVALID_MATCH_SPEC")
)

// Expr is a parsed Structured Filter. Stores that cannot take a filter natively compile it from an Expr.
type Expr interface {
	expr()
}

// And matches when every term matches. The empty And matches everything.
type And []Expr

// Or matches when at least one term matches.
type Or []Expr

// Cond is a single field predicate.
type Cond struct {
	Field string
	Op    string
	// Value holds the operand of comparison operators; numbers are float64.
	Value interface{}
	// Values holds the operands of $in and $nin.
	Values []interface{}
	// Pattern and Fold describe a $regex condition.
	Pattern string
	Fold    bool
	re      *regexp.Regexp
}

func (And) expr()   {}
func (Or) expr()    {}
func (*Cond) expr() {}

// Regexp returns the compiled pattern of a $regex condition.
func (c *Cond) Regexp() *regexp.Regexp {
	return c.re
}

// Parse validates f and returns its expression tree. Keys are visited in sorted order so that
// compiled queries are deterministic.
func Parse(f Filter) (Expr, error) {
	return parseDocument(f)
}

func parseDocument(doc map[string]interface{}) (Expr, error) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make(And, 0, len(keys))
	for _, key := range keys {
		value := doc[key]
		switch {
		case key == OpOr || key == OpAnd:
			list, err := parseList(key, value)
			if err != nil {
				return nil, err
			}
			if key == OpOr {
				terms = append(terms, Or(list))
			} else {
				terms = append(terms, And(list))
			}
		case strings.HasPrefix(key, "$"):
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, key)
		default:
			cond, err := parseField(key, value)
			if err != nil {
				return nil, err
			}
			terms = append(terms, cond)
		}
	}

	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func parseList(op string, value interface{}) ([]Expr, error) {
	items, ok := asList(value)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: %s needs a non-empty list", ErrInvalidMatchSpec, op)
	}

	out := make([]Expr, 0, len(items))
	for _, item := range items {
		doc, ok := asDocument(item)
		if !ok {
			return nil, fmt.Errorf("%w: %s entries must be objects", ErrInvalidMatchSpec, op)
		}
		e, err := parseDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseField(field string, value interface{}) (Expr, error) {
	spec, ok := asDocument(value)
	if !ok {
		v, err := scalar(field, value)
		if err != nil {
			return nil, err
		}
		return &Cond{Field: field, Op: OpEq, Value: v}, nil
	}

	ops := make([]string, 0, len(spec))
	for op := range spec {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	conds := make(And, 0, len(ops))
	for _, op := range ops {
		operand := spec[op]
		switch op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			v, err := scalar(field, operand)
			if err != nil {
				return nil, err
			}
			conds = append(conds, &Cond{Field: field, Op: op, Value: v})
		case OpIn, OpNin:
			items, ok := asList(operand)
			if !ok {
				return nil, fmt.Errorf("%w: %s on %q needs a list", ErrInvalidMatchSpec, op, field)
			}
			values := make([]interface{}, 0, len(items))
			for _, item := range items {
				v, err := scalar(field, item)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			conds = append(conds, &Cond{Field: field, Op: op, Values: values})
		case OpRegex:
			cond, err := parseRegex(field, operand, spec[OpOptions])
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		case OpOptions:
			if _, ok := spec[OpRegex]; !ok {
				return nil, fmt.Errorf("%w: $options without $regex on %q", ErrInvalidMatchSpec, field)
			}
		default:
			if strings.HasPrefix(op, "$") {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
			}
			return nil, fmt.Errorf("%w: nested documents are not supported (%q.%s)", ErrInvalidMatchSpec, field, op)
		}
	}

	if len(conds) == 0 {
		return nil, fmt.Errorf("%w: empty match spec on %q", ErrInvalidMatchSpec, field)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return conds, nil
}

func parseRegex(field string, pattern, options interface{}) (*Cond, error) {
	p, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("%w: $regex on %q must be a string", ErrInvalidMatchSpec, field)
	}

	fold := false
	if options != nil {
		opts, ok := options.(string)
		if !ok {
			return nil, fmt.Errorf("%w: $options on %q must be a string", ErrInvalidMatchSpec, field)
		}
		for _, o := range opts {
			if o != 'i' {
				return nil, fmt.Errorf("%w: regex option %q", ErrUnsupportedOperator, o)
			}
			fold = true
		}
	}

	expr := p
	if fold {
		expr = "(?i)" + p
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMatchSpec, err)
	}
	return &Cond{Field: field, Op: OpRegex, Pattern: p, Fold: fold, re: re}, nil
}

// scalar normalizes an operand; numbers become float64.
func scalar(field string, v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMatchSpec, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value %T on %q", ErrInvalidMatchSpec, v, field)
	}
}

func asDocument(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case Filter:
		return t, true
	case map[string]interface{}:
		return t, true
	default:
		return nil, false
	}
}

func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []Filter:
		out := make([]interface{}, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, true
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
