package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const askSchema = `{
	"type": "object",
	"properties": {
		"input": {"type": "string", "maxLength": 20}
	},
	"additionalProperties": false
}`

// ==========================
// Schema validation
// ==========================

func TestSchema_ValidateJSON(t *testing.T) {
	schema := MustCompile(askSchema)

	tests := []struct {
		name      string
		body      string
		wantValid bool
		wantField string
		wantCode  string
	}{
		{name: "valid", body: `{"input":"razer mice"}`, wantValid: true},
		{name: "empty object", body: `{}`, wantValid: true},
		{name: "wrong type", body: `{"input":42}`, wantField: "input", wantCode: "INVALID_TYPE"},
		{name: "too long", body: `{"input":"show me every single product you sell"}`, wantField: "input", wantCode: "STRING_LTE"},
		{name: "extra field", body: `{"input":"x","debug":true}`, wantField: "(root)", wantCode: "ADDITIONAL_PROPERTY_NOT_ALLOWED"},
		{name: "not json", body: `{input: razer}`, wantField: "(root)", wantCode: "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := schema.ValidateJSON([]byte(tt.body))
			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.wantValid {
				assert.Empty(t, result.Errors)
				return
			}
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.wantField, result.Errors[0].Field)
			assert.Equal(t, tt.wantCode, result.Errors[0].Code)
			assert.True(t, result.HasErrors(tt.wantField))
			assert.NotEmpty(t, result.Summary())
		})
	}
}

func TestSchema_ValidateDecoded(t *testing.T) {
	schema, err := CompileMap(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"channel"},
		"properties": map[string]interface{}{
			"channel": map[string]interface{}{"enum": []interface{}{"email", "sms"}},
		},
	})
	require.NoError(t, err)

	assert.True(t, schema.Validate(map[string]interface{}{"channel": "sms"}).Valid)

	result := schema.Validate(map[string]interface{}{"channel": "fax"})
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("channel"))

	result = schema.Validate(map[string]interface{}{})
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"(root): channel is required"}, result.GetErrorMessages())
}

func TestCompile_RejectsInvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	_, err = Compile(`not a schema`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`{"type": 12}`) })
}

func TestValidateContactFormats(t *testing.T) {
	assert.True(t, ValidateEmail("shopper@example.com"))
	assert.False(t, ValidateEmail("shopper@"))
	assert.True(t, ValidatePhone("+14155550100"))
	assert.False(t, ValidatePhone("415-555-0100"))
}
