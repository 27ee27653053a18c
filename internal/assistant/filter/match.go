// internal/assistant/filter/match.go
package filter

// Record exposes catalog attributes by stored name.
type Record interface {
	Field(name string) (interface{}, bool)
}

// Match evaluates f against r in process, with MongoDB semantics for missing fields and
// array-valued attributes.
func Match(f Filter, r Record) (bool, error) {
	e, err := Parse(f)
	if err != nil {
		return false, err
	}
	return Eval(e, r), nil
}

// Eval evaluates a parsed filter against r.
func Eval(e Expr, r Record) bool {
	switch t := e.(type) {
	case And:
		for _, term := range t {
			if !Eval(term, r) {
				return false
			}
		}
		return true
	case Or:
		for _, term := range t {
			if Eval(term, r) {
				return true
			}
		}
		return false
	case *Cond:
		return evalCond(t, r)
	default:
		return false
	}
}

func evalCond(c *Cond, r Record) bool {
	value, ok := r.Field(c.Field)
	if !ok {
		value = nil
	}

	// Negations hold when no element satisfies the positive form.
	switch c.Op {
	case OpNe:
		return !anyElement(value, func(v interface{}) bool { return equal(v, c.Value) })
	case OpNin:
		return !anyElement(value, func(v interface{}) bool { return inList(v, c.Values) })
	}

	if value == nil {
		return c.Op == OpEq && c.Value == nil
	}

	return anyElement(value, func(v interface{}) bool {
		switch c.Op {
		case OpEq:
			return equal(v, c.Value)
		case OpIn:
			return inList(v, c.Values)
		case OpRegex:
			s, ok := v.(string)
			return ok && c.re != nil && c.re.MatchString(s)
		case OpGt, OpGte, OpLt, OpLte:
			cmp, ok := compare(v, c.Value)
			if !ok {
				return false
			}
			switch c.Op {
			case OpGt:
				return cmp > 0
			case OpGte:
				return cmp >= 0
			case OpLt:
				return cmp < 0
			default:
				return cmp <= 0
			}
		default:
			return false
		}
	})
}

// anyElement applies pred to v, or to each element when v is a string list.
func anyElement(v interface{}, pred func(interface{}) bool) bool {
	if list, ok := v.([]string); ok {
		for _, s := range list {
			if pred(s) {
				return true
			}
		}
		return false
	}
	return pred(v)
}

func inList(v interface{}, values []interface{}) bool {
	for _, candidate := range values {
		if equal(v, candidate) {
			return true
		}
	}
	return false
}

func equal(a, b interface{}) bool {
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	return aok && bok && ab == bb
}

// compare orders two numbers or two strings.
func compare(a, b interface{}) (int, bool) {
	if af, ok := number(a); ok {
		bf, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case as < bs:
		return -1, true
	case as > bs:
		return 1, true
	default:
		return 0, true
	}
}

func number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
