// internal/assistant/filter/input.go
package filter

// Kind tags the shape of a resolver Input.
type Kind int

const (
	// KindAbsent is a missing or null payload.
	KindAbsent Kind = iota
	// KindText is a raw string, which may itself hold JSON.
	KindText
	// KindMapping is an already-parsed mapping.
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMapping:
		return "mapping"
	default:
		return "absent"
	}
}

// Input is the closed union of payload shapes the resolver accepts. The JSON-string shape is a
// KindText input whose text decodes as JSON.
type Input struct {
	kind    Kind
	text    string
	mapping map[string]interface{}
}

// Absent is the missing input.
func Absent() Input {
	return Input{kind: KindAbsent}
}

// Text wraps a raw or JSON-encoded string.
func Text(s string) Input {
	return Input{kind: KindText, text: s}
}

// Mapping wraps a parsed mapping. A nil map is absent.
func Mapping(m map[string]interface{}) Input {
	if m == nil {
		return Absent()
	}
	return Input{kind: KindMapping, mapping: m}
}

func (in Input) Kind() Kind { return in.kind }

// TextValue returns the string of a KindText input.
func (in Input) TextValue() string { return in.text }

// MappingValue returns the map of a KindMapping input.
func (in Input) MappingValue() map[string]interface{} { return in.mapping }
