// internal/assistant/orchestrator/loop.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopping-assistant/internal/assistant/completion"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/pkg/registry"
)

const (
	DefaultMaxIterations    = 5
	DefaultMalformedRetries = 1
)

var (
	ErrExhausted   = errors.New("ITERATION_EXHAUSTED")
	ErrUnknownTool = errors.New("UNKNOWN_TOOL")
)

const systemPrompt = `You are a shopping assistant for an electronics store.
Answer the customer's question using only product data returned by your tools.
Always look products up before recommending them. If nothing matches, say so and suggest a broader search.
Mention product names, brands and effective prices (finalPrice) when you list products.

Available tools:
%s

If you cannot call tools natively, reply in this format:
Action: <tool name>
Action Input: <tool input>
and, once you know the answer:
Final Answer: <answer for the customer>`

const retryPrompt = "Your previous reply could not be understood. Either call one of the available tools or give your final answer."

// Loop drives sessions against a completion service and a tool registry.
type Loop struct {
	completer        completion.Completer
	tools            *registry.Registry
	maxIterations    int
	malformedRetries int
	logger           logger.Logger
	tracer           trace.Tracer
}

type Option func(*Loop)

func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithMalformedRetries sets how many uninterpretable replies are tolerated before the session fails.
func WithMalformedRetries(n int) Option {
	return func(l *Loop) {
		if n >= 0 {
			l.malformedRetries = n
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loop) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

func New(completer completion.Completer, tools *registry.Registry, log logger.Logger, opts ...Option) *Loop {
	l := &Loop{
		completer:        completer,
		tools:            tools,
		maxIterations:    DefaultMaxIterations,
		malformedRetries: DefaultMalformedRetries,
		logger:           log.With(map[string]interface{}{"component": "orchestrator"}),
		tracer:           observability.Tracer(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes one session for input. It always returns a terminal session: answered,
// exhausted after the iteration cap, or failed. A cancelled context fails the session with
// the context's cause; callers racing a deadline map that to timed-out.
func (l *Loop) Run(ctx context.Context, sessionID, input string) *Session {
	s := newSession(input)
	if sessionID != "" {
		s.ID = sessionID
	}
	log := l.logger.With(map[string]interface{}{"sessionId": s.ID})

	specs := l.tools.Specs()
	s.append(completion.Message{Role: completion.RoleSystem, Content: fmt.Sprintf(systemPrompt, toolList(specs))})
	s.append(completion.Message{Role: completion.RoleUser, Content: input})

	defer func() {
		metrics.AssistantIterations.Observe(float64(s.Iterations))
		log.Info("Orchestration finished", map[string]interface{}{
			"state":      string(s.State),
			"iterations": s.Iterations,
			"steps":      len(s.Steps),
			"malformed":  s.Malformed,
			"elapsedMs":  time.Since(s.StartedAt).Milliseconds(),
		})
	}()

	for s.Iterations < l.maxIterations {
		if err := ctx.Err(); err != nil {
			return s.finish(StateFailed, context.Cause(ctx))
		}
		s.Iterations++

		resp, err := l.think(ctx, s, specs)
		if err != nil {
			if ctx.Err() != nil {
				return s.finish(StateFailed, context.Cause(ctx))
			}
			if !errors.Is(err, completion.ErrMalformed) {
				return s.finish(StateFailed, err)
			}
			if done := l.tolerate(s, err, log); done {
				return s
			}
			continue
		}

		if !resp.IsToolRequest() {
			if strings.TrimSpace(resp.Answer) == "" {
				if done := l.tolerate(s, fmt.Errorf("%w: empty answer", completion.ErrMalformed), log); done {
					return s
				}
				continue
			}
			s.Answer = resp.Answer
			return s.finish(StateAnswered, nil)
		}

		tool, ok := l.tools.Lookup(resp.ToolCall.Name)
		if !ok {
			if done := l.tolerate(s, fmt.Errorf("%w: %w: %s", completion.ErrMalformed, ErrUnknownTool, resp.ToolCall.Name), log); done {
				return s
			}
			continue
		}

		l.act(ctx, s, tool, resp, log)
	}

	return s.finish(StateExhausted, fmt.Errorf("%w: no answer after %d iterations", ErrExhausted, s.Iterations))
}

func (l *Loop) think(ctx context.Context, s *Session, specs []registry.ToolSpec) (completion.Response, error) {
	ctx, span := l.tracer.Start(ctx, "orchestrator.think", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.Int("iteration", s.Iterations),
		attribute.Int("transcript.length", len(s.Transcript)),
	))
	defer span.End()

	resp, err := l.completer.Complete(ctx, completion.Request{Messages: s.Transcript, Tools: specs})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return completion.Response{}, err
	}
	span.SetAttributes(attribute.Bool("tool.requested", resp.IsToolRequest()))
	return resp, nil
}

// act invokes the tool and observes its output into the transcript.
func (l *Loop) act(ctx context.Context, s *Session, tool registry.Tool, resp completion.Response, log logger.Logger) {
	call := *resp.ToolCall
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}

	ctx, span := l.tracer.Start(ctx, "orchestrator.act", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("tool.name", call.Name),
	))
	observation, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observation = toolError(err)
	}
	span.End()

	log.Debug("Tool invoked", map[string]interface{}{
		"iteration": s.Iterations,
		"tool":      call.Name,
		"arguments": call.Arguments,
	})

	s.append(completion.Message{Role: completion.RoleAssistant, Content: resp.Thought, ToolCall: &call})
	s.append(completion.Message{Role: completion.RoleTool, ToolCallID: call.ID, Content: observation})
	s.Steps = append(s.Steps, Step{Tool: call.Name, Arguments: call.Arguments, Observation: observation})
}

// tolerate counts an uninterpretable reply. It fails the session once the tolerance is spent,
// otherwise it nudges the service and reports that the loop should continue.
func (l *Loop) tolerate(s *Session, err error, log logger.Logger) bool {
	s.Malformed++
	log.Warn("Completion output was malformed", map[string]interface{}{
		"iteration": s.Iterations,
		"malformed": s.Malformed,
		"error":     err.Error(),
	})
	if s.Malformed > l.malformedRetries {
		s.finish(StateFailed, err)
		return true
	}
	s.append(completion.Message{Role: completion.RoleUser, Content: retryPrompt})
	return false
}

func toolList(specs []registry.ToolSpec) string {
	lines := make([]string, 0, len(specs))
	for _, spec := range specs {
		lines = append(lines, fmt.Sprintf("- %s: %s", spec.Name, firstLine(spec.Description)))
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func toolError(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
