// Package filter turns free text or JSON-ish input into a Structured Filter over the catalog.
//
// A Filter is JSON-shaped data using the MongoDB query vocabulary: attribute keys mapped to a
// scalar (equality) or an operator document ($lte, $gte, $regex, ...), and $or / $and lists of
// sub-filters. The empty filter matches every product.
package filter

import (
	"encoding/json"
	"regexp"
)

// Filter is a Structured Filter. It always marshals to a JSON object.
type Filter map[string]interface{}

// Operators understood by Parse and by every catalog store.
const (
	OpEq      = "$eq"
	OpNe      = "$ne"
	OpGt      = "$gt"
	OpGte     = "$gte"
	OpLt      = "$lt"
	OpLte     = "$lte"
	OpIn      = "$in"
	OpNin     = "$nin"
	OpRegex   = "$regex"
	OpOptions = "$options"
	OpOr      = "$or"
	OpAnd     = "$and"
)

// Effective price: the canonical field for bound comparisons.
const FieldFinalPrice = "finalPrice"

// Fallback search fields, in order.
var TextFields = []string{"name", "brand", "category", "description"}

// Empty returns the match-everything filter.
func Empty() Filter {
	return Filter{}
}

// IsEmpty reports whether f carries no constraint.
func (f Filter) IsEmpty() bool {
	return len(f) == 0
}

// String renders f as compact JSON.
func (f Filter) String() string {
	if f == nil {
		return "{}"
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Clone returns a shallow copy; nested match specs are shared.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Pattern builds a case-insensitive substring match spec for text.
func Pattern(text string) map[string]interface{} {
	return map[string]interface{}{
		OpRegex:   regexp.QuoteMeta(text),
		OpOptions: "i",
	}
}

// Contains matches field case-insensitively against text as a literal substring.
func Contains(field, text string) Filter {
	return Filter{field: Pattern(text)}
}

// AtMost bounds field from above, inclusive.
func AtMost(field string, n int) Filter {
	return Filter{field: map[string]interface{}{OpLte: n}}
}

// AtLeast bounds field from below, inclusive.
func AtLeast(field string, n int) Filter {
	return Filter{field: map[string]interface{}{OpGte: n}}
}

// AnyOf matches when at least one sub-filter matches.
func AnyOf(subs ...Filter) Filter {
	terms := make([]interface{}, len(subs))
	for i, s := range subs {
		terms[i] = map[string]interface{}(s)
	}
	return Filter{OpOr: terms}
}
