// internal/assistant/filter/resolver.go
package filter

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Rule names the resolver stage that produced a filter.
type Rule string

const (
	RuleEmpty         Rule = "empty"
	RuleMapping       Rule = "mapping"
	RuleBroadBrand    Rule = "broad_brand"
	RuleBroadCategory Rule = "broad_category"
	RuleBroadAll      Rule = "broad_all"
	RuleBrandIntent   Rule = "brand_intent"
	RulePriceUpper    Rule = "price_upper"
	RulePriceLower    Rule = "price_lower"
	RuleBrand         Rule = "brand"
	RuleCategory      Rule = "category"
	RuleFallback      Rule = "fallback"
)

var (
	broadKeywords      = []string{"all", "every", "show me"}
	brandKeywords      = []string{"brand", "from"}
	upperBoundKeywords = []string{"under", "below", "less than"}
	lowerBoundKeywords = []string{"above", "over", "more than"}

	integerToken = regexp.MustCompile(`\d+`)
)

// Nested JSON strings are unwrapped at most this many times.
const maxStringNesting = 2

// Vocabulary holds the fixed brand and category lists scanned by the heuristics.
// Scans return the first entry in list order that occurs in the input.
type Vocabulary struct {
	Brands     []string
	Categories []string
}

// Resolution is a resolved filter and the rule that produced it.
type Resolution struct {
	Filter Filter
	Rule   Rule
}

// Resolver maps tool input to a Structured Filter. It never fails and is safe for concurrent use.
type Resolver struct {
	brands     []string
	categories []string
}

func NewResolver(vocab Vocabulary) *Resolver {
	return &Resolver{
		brands:     lowerAll(vocab.Brands),
		categories: lowerAll(vocab.Categories),
	}
}

// Resolve returns the filter for in.
func (r *Resolver) Resolve(in Input) Filter {
	return r.Explain(in).Filter
}

// Explain resolves in and reports which rule fired.
func (r *Resolver) Explain(in Input) Resolution {
	switch in.Kind() {
	case KindMapping:
		return r.fromMapping(in.MappingValue())
	case KindText:
		return r.fromText(in.TextValue(), 0)
	default:
		return Resolution{Filter: Empty(), Rule: RuleEmpty}
	}
}

// ResolveText is shorthand for Resolve(Text(s)).
func (r *Resolver) ResolveText(s string) Filter {
	return r.Resolve(Text(s))
}

func (r *Resolver) fromMapping(m map[string]interface{}) Resolution {
	if len(m) == 0 {
		return Resolution{Filter: Empty(), Rule: RuleEmpty}
	}

	f := make(Filter, len(m))
	for k, v := range m {
		f[k] = v
	}
	if brand, ok := scalarText(f["brand"]); ok {
		f["brand"] = Pattern(brand)
	}
	return Resolution{Filter: f, Rule: RuleMapping}
}

func (r *Resolver) fromText(s string, depth int) Resolution {
	if strings.TrimSpace(s) == "" {
		return Resolution{Filter: Empty(), Rule: RuleEmpty}
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		switch v := decoded.(type) {
		case map[string]interface{}:
			return r.fromMapping(v)
		case nil:
			return Resolution{Filter: Empty(), Rule: RuleEmpty}
		case string:
			if depth < maxStringNesting {
				return r.fromText(v, depth+1)
			}
			return r.heuristics(v)
		}
	}
	return r.heuristics(s)
}

func (r *Resolver) heuristics(s string) Resolution {
	text := strings.ToLower(strings.TrimSpace(s))
	if text == "" {
		return Resolution{Filter: Empty(), Rule: RuleEmpty}
	}

	if containsAny(text, broadKeywords) {
		if brand, ok := firstIn(text, r.brands); ok {
			return Resolution{Filter: Contains("brand", brand), Rule: RuleBroadBrand}
		}
		if category, ok := firstIn(text, r.categories); ok {
			return Resolution{Filter: Contains("category", category), Rule: RuleBroadCategory}
		}
		return Resolution{Filter: Empty(), Rule: RuleBroadAll}
	}

	if containsAny(text, brandKeywords) {
		if brand, ok := firstIn(text, r.brands); ok {
			return Resolution{Filter: Contains("brand", brand), Rule: RuleBrandIntent}
		}
	}

	if containsAny(text, upperBoundKeywords) {
		if n, ok := firstInteger(text); ok {
			return Resolution{Filter: AtMost(FieldFinalPrice, n), Rule: RulePriceUpper}
		}
	}

	if containsAny(text, lowerBoundKeywords) {
		if n, ok := firstInteger(text); ok {
			return Resolution{Filter: AtLeast(FieldFinalPrice, n), Rule: RulePriceLower}
		}
	}

	if brand, ok := firstIn(text, r.brands); ok {
		return Resolution{Filter: Contains("brand", brand), Rule: RuleBrand}
	}
	if category, ok := firstIn(text, r.categories); ok {
		return Resolution{Filter: Contains("category", category), Rule: RuleCategory}
	}

	terms := make([]Filter, len(TextFields))
	for i, field := range TextFields {
		terms[i] = Contains(field, text)
	}
	return Resolution{Filter: AnyOf(terms...), Rule: RuleFallback}
}

// scalarText reports whether v is a bare brand value and renders it as text.
func scalarText(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func firstInteger(text string) (int, bool) {
	token := integerToken.FindString(text)
	if token == "" {
		return 0, false
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return n, true
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func firstIn(text string, vocab []string) (string, bool) {
	for _, v := range vocab {
		if v != "" && strings.Contains(text, v) {
			return v, true
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
