// internal/assistant/catalog/payload.go
package catalog

import (
	"encoding/json"
	"strings"

	"shopping-assistant/internal/assistant/filter"
)

// Wrapper keys the completion service may put around the payload.
const (
	argInput = "input"
	argLimit = "limit"
)

// Request is a decoded tool invocation.
type Request struct {
	Input filter.Input
	// Limit is the caller's requested row count; 0 means none. It never raises MaxRows.
	Limit int
}

// TextRequest wraps free text, for the direct path.
func TextRequest(s string) Request {
	return Request{Input: filter.Text(s)}
}

// DecodeArguments maps raw tool arguments onto the three payload shapes. Arguments that are not
// JSON are free text. A JSON object carrying "input" is unwrapped; any other object is itself
// the filter. A top-level "limit" is lifted out of the filter in both cases.
func DecodeArguments(args string) Request {
	if strings.TrimSpace(args) == "" {
		return Request{Input: filter.Absent()}
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(args), &decoded); err != nil {
		return Request{Input: filter.Text(args)}
	}

	switch v := decoded.(type) {
	case nil:
		return Request{Input: filter.Absent()}
	case map[string]interface{}:
		limit := takeLimit(v)
		inner, wrapped := v[argInput]
		if !wrapped {
			return Request{Input: filter.Mapping(v), Limit: limit}
		}
		return Request{Input: unwrap(inner, &limit), Limit: limit}
	default:
		// JSON strings and other values are resolved from their text.
		return Request{Input: filter.Text(args)}
	}
}

func unwrap(inner interface{}, limit *int) filter.Input {
	switch t := inner.(type) {
	case nil:
		return filter.Absent()
	case string:
		return filter.Text(t)
	case map[string]interface{}:
		if n := takeLimit(t); n > 0 && *limit == 0 {
			*limit = n
		}
		return filter.Mapping(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return filter.Absent()
		}
		return filter.Text(string(raw))
	}
}

// takeLimit removes a numeric "limit" key from m and returns it; 0 when absent or invalid.
func takeLimit(m map[string]interface{}) int {
	raw, ok := m[argLimit]
	if !ok {
		return 0
	}
	n, ok := raw.(float64)
	if !ok {
		return 0
	}
	delete(m, argLimit)
	if n < 1 {
		return 0
	}
	return int(n)
}
