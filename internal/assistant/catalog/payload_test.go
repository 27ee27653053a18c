// internal/assistant/catalog/payload_test.go
package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shopping-assistant/internal/assistant/filter"
)

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantKind  filter.Kind
		wantText  string
		wantMap   map[string]interface{}
		wantLimit int
	}{
		{name: "empty", args: "  ", wantKind: filter.KindAbsent},
		{name: "json null", args: "null", wantKind: filter.KindAbsent},
		{name: "raw text", args: "razer mice", wantKind: filter.KindText, wantText: "razer mice"},
		{name: "malformed json", args: "{brand: razer}", wantKind: filter.KindText, wantText: "{brand: razer}"},
		{name: "json string", args: `"razer mice"`, wantKind: filter.KindText, wantText: `"razer mice"`},
		{name: "json number", args: `42`, wantKind: filter.KindText, wantText: `42`},
		{
			name:     "bare object",
			args:     `{"category":"mouse"}`,
			wantKind: filter.KindMapping,
			wantMap:  map[string]interface{}{"category": "mouse"},
		},
		{
			name:      "bare object with limit",
			args:      `{"category":"mouse","limit":3}`,
			wantKind:  filter.KindMapping,
			wantMap:   map[string]interface{}{"category": "mouse"},
			wantLimit: 3,
		},
		{name: "wrapped text", args: `{"input":"all products"}`, wantKind: filter.KindText, wantText: "all products"},
		{
			name:      "wrapped object",
			args:      `{"input":{"brand":"hp","limit":2}}`,
			wantKind:  filter.KindMapping,
			wantMap:   map[string]interface{}{"brand": "hp"},
			wantLimit: 2,
		},
		{name: "wrapped null", args: `{"input":null,"limit":4}`, wantKind: filter.KindAbsent, wantLimit: 4},
		{name: "wrapped array", args: `{"input":["razer"]}`, wantKind: filter.KindText, wantText: `["razer"]`},
		{name: "non-numeric limit is a filter key", args: `{"limit":"five"}`, wantKind: filter.KindMapping, wantMap: map[string]interface{}{"limit": "five"}},
		{name: "zero limit", args: `{"input":"x","limit":0}`, wantKind: filter.KindText, wantText: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeArguments(tt.args)
			assert.Equal(t, tt.wantKind, got.Input.Kind())
			assert.Equal(t, tt.wantLimit, got.Limit)
			switch tt.wantKind {
			case filter.KindText:
				assert.Equal(t, tt.wantText, got.Input.TextValue())
			case filter.KindMapping:
				assert.Equal(t, tt.wantMap, got.Input.MappingValue())
			}
		})
	}
}
