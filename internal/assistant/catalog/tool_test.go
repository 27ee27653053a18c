// internal/assistant/catalog/tool_test.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
	"shopping-assistant/pkg/registry"
)

// ==========================
// Test Store Implementation
// ==========================

type fakeStore struct {
	products    []models.Product
	err         error
	ignoreLimit bool

	calls      int
	lastFilter filter.Filter
	lastOpts   FindOptions
}

func (s *fakeStore) Find(ctx context.Context, f filter.Filter, opts FindOptions) ([]models.Product, error) {
	s.calls++
	s.lastFilter = f
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}

	var out []models.Product
	for _, p := range s.products {
		ok, err := filter.Match(f, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, p)
		if !s.ignoreLimit && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// ==========================
// Test Helper Functions
// ==========================

var testVocabulary = filter.Vocabulary{
	Brands:     []string{"razer", "logitech", "corsair", "hyperx", "steelseries", "apple", "dell", "hp", "asus", "msi"},
	Categories: []string{"mouse", "keyboard", "laptop", "monitor", "headphone", "speaker", "headset"},
}

func sampleProducts() []models.Product {
	return []models.Product{
		{ID: "1", Name: "Razer DeathAdder V3", Brand: "Razer", Category: "mouse", Price: 89.99, FinalPrice: 69.99, Stock: 12, Rating: 4.7, Tags: []string{"wired"}},
		{ID: "2", Name: "Razer BlackWidow V4", Brand: "Razer", Category: "keyboard", Price: 169.99, FinalPrice: 149.99, Stock: 4, Rating: 4.5},
		{ID: "3", Name: "Logitech G Pro X Superlight", Brand: "Logitech", Category: "mouse", Price: 159.99, FinalPrice: 129.99, Stock: 9, Rating: 4.8},
		{ID: "4", Name: "Corsair K70 RGB", Brand: "Corsair", Category: "keyboard", Price: 139.99, FinalPrice: 99.99, Stock: 0, Rating: 4.4},
	}
}

func manyProducts(n int) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{
			ID:         fmt.Sprintf("%d", i),
			Name:       fmt.Sprintf("Razer Item %d", i),
			Brand:      "Razer",
			Category:   "mouse",
			FinalPrice: float64(10 + i),
		}
	}
	return out
}

func newTestTool(t *testing.T, store Store, opts ...Option) *Tool {
	return NewTool(filter.NewResolver(testVocabulary), store, logger.NewTestLogger(t), opts...)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestTool_InvokeReturnsProjectedRows(t *testing.T) {
	store := &fakeStore{products: sampleProducts()}
	tool := newTestTool(t, store)

	out := tool.Invoke(context.Background(), TextRequest("show me all razer products"))

	var views []models.ProductView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "Razer DeathAdder V3", views[0].Name)
	assert.Equal(t, 69.99, views[0].FinalPrice)
	assert.NotContains(t, out, "tags")

	assert.Equal(t, filter.Contains("brand", "razer"), store.lastFilter)
	assert.Equal(t, MaxRows, store.lastOpts.Limit)
	assert.Equal(t, models.ProjectedFields, store.lastOpts.Fields)
}

func TestTool_PriceScenario(t *testing.T) {
	store := &fakeStore{products: sampleProducts()}
	tool := newTestTool(t, store)

	res, err := tool.Query(context.Background(), TextRequest("mice under 100"))
	require.NoError(t, err)

	assert.Equal(t, filter.RulePriceUpper, res.Rule)
	require.NotEmpty(t, res.Products)
	for _, p := range res.Products {
		assert.LessOrEqual(t, p.FinalPrice, 100.0)
	}
}

func TestTool_NoMatchIncludesFilter(t *testing.T) {
	tool := newTestTool(t, &fakeStore{products: sampleProducts()})

	out := tool.Invoke(context.Background(), TextRequest(`{"brand":"apple"}`))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, NoMatchMessage, got["message"])
	assert.Equal(t, map[string]interface{}{
		"brand": map[string]interface{}{"$regex": "apple", "$options": "i"},
	}, got["query"])
}

func TestTool_StoreErrorBecomesText(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	tool := newTestTool(t, store)

	out := tool.Invoke(context.Background(), TextRequest("razer"))

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Error fetching products: connection refused", got["error"])
	assert.Equal(t, ErrorSuggestion, got["suggestion"])

	_, err := tool.Query(context.Background(), TextRequest("razer"))
	assert.ErrorIs(t, err, ErrStoreQueryFailed)
}

func TestTool_InvalidFilterIsAStoreError(t *testing.T) {
	tool := newTestTool(t, &fakeStore{products: sampleProducts()})

	out := tool.Invoke(context.Background(), Request{Input: filter.Mapping(map[string]interface{}{"$where": "1"})})
	assert.Contains(t, out, "Error fetching products: UNSUPPORTED_OPERATOR")
}

// ==========================
// Row Cap Tests
// ==========================

func TestTool_RowCap(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		limit     int
		wantLimit int
	}{
		{"default cap", nil, 0, MaxRows},
		{"caller limit below cap", nil, 3, 3},
		{"caller limit above cap", nil, 50, MaxRows},
		{"configured cap cannot raise", []Option{WithMaxRows(100)}, 0, MaxRows},
		{"configured cap can lower", []Option{WithMaxRows(5)}, 8, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{products: manyProducts(40), ignoreLimit: true}
			tool := newTestTool(t, store, tt.opts...)

			res, err := tool.Query(context.Background(), Request{Input: filter.Text("all products"), Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, store.lastOpts.Limit)
			assert.Len(t, res.Products, tt.wantLimit)
		})
	}
}

func TestTool_RowCapProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("never more than 10 items", prop.ForAll(
		func(stored, requested int) bool {
			store := &fakeStore{products: manyProducts(stored), ignoreLimit: true}
			tool := NewTool(filter.NewResolver(testVocabulary), store, logger.NewNoOpLogger())

			args := fmt.Sprintf(`{"input":"all products","limit":%d}`, requested)
			var views []models.ProductView
			out, _ := tool.Call(context.Background(), args)
			if err := json.Unmarshal([]byte(out), &views); err != nil {
				// Empty catalogs render the no-match object.
				return stored == 0
			}
			return len(views) <= MaxRows
		},
		gen.IntRange(0, 60),
		gen.IntRange(-5, 500),
	))

	properties.TestingRun(t)
}

// ==========================
// Declaration And Tracing Tests
// ==========================

func TestTool_Spec(t *testing.T) {
	spec := newTestTool(t, &fakeStore{}).Spec()

	assert.Equal(t, ToolName, spec.Name)
	assert.Contains(t, spec.Description, `{"brand": "razer"}`)
	assert.Contains(t, spec.Description, "all razer products")
	assert.Equal(t, "object", spec.Parameters["type"])
	assert.Equal(t, []string{"input"}, spec.Parameters["required"])
}

func TestTool_ShippedManifestKeepsContract(t *testing.T) {
	reg, err := registry.New(newTestTool(t, &fakeStore{}))
	require.NoError(t, err)

	manifest, err := registry.LoadManifest(filepath.Join("..", "..", "..", "configs", "tools.json"))
	require.NoError(t, err)
	reg.Apply(manifest)

	specs := reg.Specs()
	require.Len(t, specs, 1)
	for _, d := range []string{toolDescription, specs[0].Description} {
		assert.Contains(t, d, "JSON filter string")
		assert.Contains(t, d, `bare JSON object: {"brand": "razer"}`)
		assert.Contains(t, d, `Natural language: "all razer products"`)
		assert.Contains(t, d, "At most 10 products are returned per call.")
	}
}

func TestTool_CallAcceptsAllPayloadShapes(t *testing.T) {
	store := &fakeStore{products: sampleProducts()}
	tool := newTestTool(t, store)

	shapes := []string{
		`all logitech products`,
		`"all logitech products"`,
		`{"brand":"logitech"}`,
		`{"input":"all logitech products"}`,
		`{"input":{"brand":"logitech"}}`,
		`{"input":"{\"brand\":\"logitech\"}"}`,
	}

	for _, args := range shapes {
		t.Run(args, func(t *testing.T) {
			out, err := tool.Call(context.Background(), args)
			require.NoError(t, err)

			var views []models.ProductView
			require.NoError(t, json.Unmarshal([]byte(out), &views))
			require.Len(t, views, 1)
			assert.Equal(t, "Logitech", views[0].Brand)
		})
	}
}

func TestTool_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tool := newTestTool(t, &fakeStore{products: sampleProducts()}, WithTracer(provider.Tracer("test")))

	tool.Invoke(context.Background(), TextRequest("corsair"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "catalog.find", spans[0].Name())

	attrs := make(map[string]interface{})
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "brand", attrs["filter.rule"])
	assert.Equal(t, int64(1), attrs["rows"])
}
