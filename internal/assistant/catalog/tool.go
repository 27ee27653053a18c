// internal/assistant/catalog/tool.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/models"
	"shopping-assistant/pkg/registry"
)

const (
	ToolName = "queryCatalog"

	NoMatchMessage  = "No products found matching your criteria."
	ErrorSuggestion = "Try a simpler query like 'all products' or 'razer products'"
)

const toolDescription = `Use this tool to fetch products from the product catalog.
Input can be either:
1. A JSON filter string: "{\"brand\": \"razer\"}"
2. A bare JSON object: {"brand": "razer"}
3. Natural language: "all razer products"

Examples:
- {"brand": "razer"} - Get all Razer products
- {"category": "mouse"} - Get all mice
- {"finalPrice": {"$lte": 100}} - Get products with an effective price of at most 100
- {} - Get all products
- "all razer products" - Will be automatically parsed
- "show me mice under 100" - Will be parsed appropriately

At most 10 products are returned per call.`

// Result is one resolved and executed catalog query.
type Result struct {
	Filter   filter.Filter
	Rule     filter.Rule
	Products []models.Product
}

type noMatchOutput struct {
	Message string        `json:"message"`
	Query   filter.Filter `json:"query"`
}

type errorOutput struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
}

// Tool is the Catalog Query Tool. Invocations never fail; store errors become textual output.
type Tool struct {
	resolver *filter.Resolver
	store    Store
	maxRows  int
	logger   logger.Logger
	tracer   trace.Tracer
}

type Option func(*Tool)

// WithMaxRows lowers the row cap. Values above MaxRows are ignored.
func WithMaxRows(n int) Option {
	return func(t *Tool) {
		if n > 0 && n < MaxRows {
			t.maxRows = n
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(t *Tool) {
		if tracer != nil {
			t.tracer = tracer
		}
	}
}

func NewTool(resolver *filter.Resolver, store Store, log logger.Logger, opts ...Option) *Tool {
	t := &Tool{
		resolver: resolver,
		store:    store,
		maxRows:  MaxRows,
		logger:   log.With(map[string]interface{}{"tool": ToolName}),
		tracer:   observability.Tracer(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Spec declares the tool to the completion service.
func (t *Tool) Spec() registry.ToolSpec {
	return registry.ToolSpec{
		Name:        ToolName,
		Description: toolDescription,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"input": map[string]interface{}{
					"description": "A JSON filter object over name, brand, category, price, finalPrice, discount, stock, rating, description and tags, or a natural-language product query.",
					"anyOf": []interface{}{
						map[string]interface{}{"type": "string"},
						map[string]interface{}{"type": "object"},
					},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of products to return (at most 10).",
				},
			},
			"required": []string{"input"},
		},
		Tags: []string{"catalog", "read-only"},
	}
}

// Call decodes raw tool arguments and invokes the tool.
func (t *Tool) Call(ctx context.Context, args string) (string, error) {
	return t.Invoke(ctx, DecodeArguments(args)), nil
}

// Invoke runs req and renders the transcript text: the projected products, a no-match message
// carrying the filter that was tried, or an error with a suggestion.
func (t *Tool) Invoke(ctx context.Context, req Request) string {
	res, err := t.Query(ctx, req)
	if err != nil {
		metrics.CatalogToolInvocations.WithLabelValues("error").Inc()
		return render(errorOutput{
			Error:      fmt.Sprintf("Error fetching products: %s", storeMessage(err)),
			Suggestion: ErrorSuggestion,
		})
	}

	if len(res.Products) == 0 {
		metrics.CatalogToolInvocations.WithLabelValues("empty").Inc()
		return render(noMatchOutput{Message: NoMatchMessage, Query: res.Filter})
	}

	metrics.CatalogToolInvocations.WithLabelValues("rows").Inc()
	return render(models.Views(res.Products))
}

// Query resolves req and reads at most the row cap from the store. Store failures wrap
// ErrStoreQueryFailed; the returned Result still carries the filter that was tried.
func (t *Tool) Query(ctx context.Context, req Request) (Result, error) {
	resolution := t.resolver.Explain(req.Input)
	metrics.FilterResolutions.WithLabelValues(string(resolution.Rule)).Inc()

	res := Result{Filter: resolution.Filter, Rule: resolution.Rule}
	limit := t.limitFor(req.Limit)

	ctx, span := t.tracer.Start(ctx, "catalog.find", trace.WithAttributes(
		attribute.String("filter.rule", string(resolution.Rule)),
		attribute.String("input.kind", req.Input.Kind().String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if resolution.Rule == filter.RuleFallback {
		t.logger.Debug("payload matched no rule, using text fallback", map[string]interface{}{
			"filter": resolution.Filter.String(),
		})
	}

	products, err := t.store.Find(ctx, resolution.Filter, FindOptions{
		Limit:  limit,
		Fields: models.ProjectedFields,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Warn("catalog query failed", map[string]interface{}{
			"rule":   string(resolution.Rule),
			"filter": resolution.Filter.String(),
			"error":  err.Error(),
		})
		return res, fmt.Errorf("%w: %v", ErrStoreQueryFailed, err)
	}

	if len(products) > limit {
		products = products[:limit]
	}
	res.Products = products
	span.SetAttributes(attribute.Int("rows", len(products)))

	t.logger.Info("catalog query executed", map[string]interface{}{
		"rule":   string(resolution.Rule),
		"filter": resolution.Filter.String(),
		"rows":   len(products),
	})
	return res, nil
}

func (t *Tool) limitFor(requested int) int {
	if requested > 0 && requested < t.maxRows {
		return requested
	}
	return t.maxRows
}

// storeMessage strips the sentinel prefix so the transcript shows the backend's own message.
func storeMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrStoreQueryFailed.Error()+": ")
}

func render(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(errorOutput{
			Error:      fmt.Sprintf("Error fetching products: %v", err),
			Suggestion: ErrorSuggestion,
		})
	}
	return string(b)
}
