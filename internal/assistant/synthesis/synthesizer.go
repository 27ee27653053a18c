// Package synthesis narrates catalog results into prose with a single completion round-trip.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopping-assistant/internal/assistant/completion"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/models"
)

const (
	systemPrompt = "You are an ecommerce assistant. Explain results clearly."
	userPrompt   = "User asked: %s\nDatabase result: %s"
)

type Synthesizer struct {
	completer completion.Completer
	logger    logger.Logger
	tracer    trace.Tracer
}

type Option func(*Synthesizer)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Synthesizer) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(completer completion.Completer, log logger.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		completer: completer,
		logger:    log.With(map[string]interface{}{"component": "synthesizer"}),
		tracer:    observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize explains products in answer to request. No tools are declared, so any reply that
// is not plain text is malformed.
func (s *Synthesizer) Synthesize(ctx context.Context, request string, products []models.Product) (string, error) {
	ctx, span := s.tracer.Start(ctx, "synthesis.synthesize", trace.WithAttributes(
		attribute.Int("products", len(products)),
	))
	defer span.End()

	result, err := json.Marshal(models.Views(products))
	if err != nil {
		return "", fmt.Errorf("encode products: %w", err)
	}

	resp, err := s.completer.Complete(ctx, completion.Request{
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: systemPrompt},
			{Role: completion.RoleUser, Content: fmt.Sprintf(userPrompt, request, result)},
		},
	})
	switch {
	case err != nil:
	case resp.IsToolRequest():
		err = fmt.Errorf("%w: tool request %q without declared tools", completion.ErrMalformed, resp.ToolCall.Name)
	case strings.TrimSpace(resp.Answer) == "":
		err = fmt.Errorf("%w: empty answer", completion.ErrMalformed)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("Synthesis failed", map[string]interface{}{
			"products": len(products),
			"error":    err.Error(),
		})
		return "", err
	}

	s.logger.Debug("Synthesis completed", map[string]interface{}{
		"products":     len(products),
		"answerLength": len(resp.Answer),
	})
	return resp.Answer, nil
}
