// internal/assistant/synthesis/synthesizer_test.go
package synthesis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"shopping-assistant/internal/assistant/completion"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

func razerProducts() []models.Product {
	return []models.Product{
		{ID: "1", Name: "Razer DeathAdder", Brand: "Razer", Category: "mouse", Price: 69, FinalPrice: 59, Discount: 10, Stock: 4, Tags: []string{"gaming"}},
		{ID: "2", Name: "Razer BlackWidow", Brand: "Razer", Category: "keyboard", Price: 120, FinalPrice: 120, Stock: 2},
	}
}

// ==========================
// Synthesize
// ==========================

func TestSynthesize_BuildsSingleRoundTrip(t *testing.T) {
	var got completion.Request
	calls := 0
	c := completion.CompleterFunc(func(ctx context.Context, req completion.Request) (completion.Response, error) {
		calls++
		got = req
		return completion.Response{Answer: "Razer has two products in stock."}, nil
	})

	answer, err := New(c, logger.NewTestLogger(t)).Synthesize(context.Background(), "show me all razer products", razerProducts())
	require.NoError(t, err)
	assert.Equal(t, "Razer has two products in stock.", answer)
	assert.Equal(t, 1, calls)

	assert.Empty(t, got.Tools)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, completion.Message{Role: completion.RoleSystem, Content: systemPrompt}, got.Messages[0])
	assert.Equal(t, completion.RoleUser, got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "User asked: show me all razer products\nDatabase result: [")
	assert.Contains(t, got.Messages[1].Content, `"name":"Razer DeathAdder"`)
	assert.Contains(t, got.Messages[1].Content, `"finalPrice":59`)
	assert.NotContains(t, got.Messages[1].Content, "tags")
}

func TestSynthesize_EmptyResults(t *testing.T) {
	var content string
	c := completion.CompleterFunc(func(ctx context.Context, req completion.Request) (completion.Response, error) {
		content = req.Messages[1].Content
		return completion.Response{Answer: "Nothing matched."}, nil
	})

	answer, err := New(c, logger.NewNoOpLogger()).Synthesize(context.Background(), "unicorn pads", nil)
	require.NoError(t, err)
	assert.Equal(t, "Nothing matched.", answer)
	assert.Equal(t, "User asked: unicorn pads\nDatabase result: []", content)
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name    string
		resp    completion.Response
		err     error
		wantErr error
	}{
		{name: "service failure", err: completion.ErrCompletionFailed, wantErr: completion.ErrCompletionFailed},
		{name: "malformed", err: completion.ErrMalformed, wantErr: completion.ErrMalformed},
		{name: "unexpected tool request", resp: completion.Response{ToolCall: &completion.ToolCall{Name: "queryCatalog"}}, wantErr: completion.ErrMalformed},
		{name: "empty answer", resp: completion.Response{Answer: " \n"}, wantErr: completion.ErrMalformed},
		{name: "deadline", err: context.DeadlineExceeded, wantErr: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := completion.CompleterFunc(func(ctx context.Context, req completion.Request) (completion.Response, error) {
				return tt.resp, tt.err
			})
			_, err := New(c, logger.NewNoOpLogger()).Synthesize(context.Background(), "razer", razerProducts())
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSynthesize_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	c := completion.CompleterFunc(func(ctx context.Context, req completion.Request) (completion.Response, error) {
		return completion.Response{}, completion.ErrCompletionFailed
	})

	_, _ = New(c, logger.NewNoOpLogger(), WithTracer(provider.Tracer("test"))).Synthesize(context.Background(), "razer", razerProducts())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "synthesis.synthesize", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}
