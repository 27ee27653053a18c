// internal/assistant/orchestrator/loop_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"shopping-assistant/internal/assistant/completion"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/pkg/registry"
)

type reply struct {
	resp completion.Response
	err  error
}

func answer(text string) reply {
	return reply{resp: completion.Response{Answer: text}}
}

func toolCall(name, args string) reply {
	return reply{resp: completion.Response{ToolCall: &completion.ToolCall{ID: "call-" + args, Name: name, Arguments: args}}}
}

func malformed() reply {
	return reply{err: fmt.Errorf("%w: empty completion", completion.ErrMalformed)}
}

// scriptedCompleter plays back replies in order and repeats the last one.
type scriptedCompleter struct {
	mu       sync.Mutex
	script   []reply
	requests []completion.Request
}

func (c *scriptedCompleter) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := append([]completion.Message(nil), req.Messages...)
	c.requests = append(c.requests, completion.Request{Messages: msgs, Tools: req.Tools})

	i := len(c.requests) - 1
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	return c.script[i].resp, c.script[i].err
}

func (c *scriptedCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type fakeTool struct {
	name  string
	reply string
	err   error
	args  []string
}

func (t *fakeTool) Spec() registry.ToolSpec {
	return registry.ToolSpec{Name: t.name, Description: "Fetch products.\nMore detail.", Parameters: map[string]interface{}{"type": "object"}}
}

func (t *fakeTool) Call(ctx context.Context, args string) (string, error) {
	t.args = append(t.args, args)
	return t.reply, t.err
}

func newTestLoop(t *testing.T, c completion.Completer, tool *fakeTool, opts ...Option) *Loop {
	reg, err := registry.New(tool)
	require.NoError(t, err)
	return New(c, reg, logger.NewTestLogger(t), opts...)
}

func catalogTool() *fakeTool {
	return &fakeTool{name: "queryCatalog", reply: `[{"name":"Razer Viper","brand":"Razer","finalPrice":49}]`}
}

// ==========================
// Terminal states
// ==========================

func TestLoop_AnswersWithoutTools(t *testing.T) {
	c := &scriptedCompleter{script: []reply{answer("Hello! What are you shopping for?")}}
	loop := newTestLoop(t, c, catalogTool())

	s := loop.Run(context.Background(), "sess-1", "hi")

	assert.Equal(t, StateAnswered, s.State)
	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, "Hello! What are you shopping for?", s.Answer)
	assert.Equal(t, 1, s.Iterations)
	assert.NoError(t, s.Err)
	assert.True(t, s.Terminal())
}

func TestLoop_ThinkActObserve(t *testing.T) {
	tool := catalogTool()
	c := &scriptedCompleter{script: []reply{
		toolCall("queryCatalog", `{"input":"razer"}`),
		answer("The Razer Viper costs 49."),
	}}
	loop := newTestLoop(t, c, tool)

	s := loop.Run(context.Background(), "", "razer mice")

	require.Equal(t, StateAnswered, s.State)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 2, s.Iterations)
	assert.Equal(t, []string{`{"input":"razer"}`}, tool.args)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, Step{Tool: "queryCatalog", Arguments: `{"input":"razer"}`, Observation: tool.reply}, s.Steps[0])

	// The second think sees the tool call and its observation.
	require.Len(t, c.requests, 2)
	second := c.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, completion.RoleSystem, second[0].Role)
	assert.Contains(t, second[0].Content, "- queryCatalog: Fetch products.")
	assert.NotContains(t, second[0].Content, "More detail.")
	assert.Equal(t, completion.Message{Role: completion.RoleUser, Content: "razer mice"}, second[1])
	assert.Equal(t, completion.RoleAssistant, second[2].Role)
	require.NotNil(t, second[2].ToolCall)
	assert.Equal(t, "queryCatalog", second[2].ToolCall.Name)
	assert.Equal(t, completion.RoleTool, second[3].Role)
	assert.Equal(t, second[2].ToolCall.ID, second[3].ToolCallID)
	assert.Equal(t, tool.reply, second[3].Content)

	require.Len(t, c.requests[0].Tools, 1)
	assert.Equal(t, "queryCatalog", c.requests[0].Tools[0].Name)
}

func TestLoop_AssignsMissingToolCallIDs(t *testing.T) {
	c := &scriptedCompleter{script: []reply{
		{resp: completion.Response{ToolCall: &completion.ToolCall{Name: "queryCatalog", Arguments: "razer"}}},
		answer("done"),
	}}
	loop := newTestLoop(t, c, catalogTool())

	s := loop.Run(context.Background(), "", "razer")
	require.Equal(t, StateAnswered, s.State)

	msgs := c.requests[1].Messages
	assert.NotEmpty(t, msgs[2].ToolCall.ID)
	assert.Equal(t, msgs[2].ToolCall.ID, msgs[3].ToolCallID)
}

func TestLoop_ExhaustsAtIterationCap(t *testing.T) {
	tool := catalogTool()
	c := &scriptedCompleter{script: []reply{toolCall("queryCatalog", `{}`)}}
	loop := newTestLoop(t, c, tool)

	s := loop.Run(context.Background(), "", "keep looking forever")

	assert.Equal(t, StateExhausted, s.State)
	assert.ErrorIs(t, s.Err, ErrExhausted)
	assert.Equal(t, DefaultMaxIterations, s.Iterations)
	assert.Equal(t, DefaultMaxIterations, c.calls())
	assert.Len(t, tool.args, DefaultMaxIterations)
}

func TestLoop_MalformedRecovery(t *testing.T) {
	t.Run("one malformed reply is tolerated", func(t *testing.T) {
		c := &scriptedCompleter{script: []reply{malformed(), answer("Here you go.")}}
		loop := newTestLoop(t, c, catalogTool())

		s := loop.Run(context.Background(), "", "razer")

		assert.Equal(t, StateAnswered, s.State)
		assert.Equal(t, 1, s.Malformed)
		assert.Equal(t, 2, s.Iterations)
		last := c.requests[1].Messages
		assert.Equal(t, completion.Message{Role: completion.RoleUser, Content: retryPrompt}, last[len(last)-1])
	})

	t.Run("a second malformed reply fails the session", func(t *testing.T) {
		c := &scriptedCompleter{script: []reply{malformed(), malformed(), answer("never reached")}}
		loop := newTestLoop(t, c, catalogTool())

		s := loop.Run(context.Background(), "", "razer")

		assert.Equal(t, StateFailed, s.State)
		assert.ErrorIs(t, s.Err, completion.ErrMalformed)
		assert.Equal(t, 2, c.calls())
	})

	t.Run("unknown tool counts as malformed", func(t *testing.T) {
		tool := catalogTool()
		c := &scriptedCompleter{script: []reply{toolCall("searchWeb", "razer"), toolCall("searchWeb", "razer")}}
		loop := newTestLoop(t, c, tool)

		s := loop.Run(context.Background(), "", "razer")

		assert.Equal(t, StateFailed, s.State)
		assert.ErrorIs(t, s.Err, completion.ErrMalformed)
		assert.ErrorIs(t, s.Err, ErrUnknownTool)
		assert.Empty(t, tool.args)
	})

	t.Run("empty answer counts as malformed", func(t *testing.T) {
		c := &scriptedCompleter{script: []reply{{resp: completion.Response{}}, answer("Here you go.")}}
		loop := newTestLoop(t, c, catalogTool())

		s := loop.Run(context.Background(), "", "razer")

		assert.Equal(t, StateAnswered, s.State)
		assert.Equal(t, "Here you go.", s.Answer)
		assert.Equal(t, 1, s.Malformed)
	})

	t.Run("repeated empty answers fail the session", func(t *testing.T) {
		c := &scriptedCompleter{script: []reply{answer("  "), answer("")}}
		loop := newTestLoop(t, c, catalogTool())

		s := loop.Run(context.Background(), "", "razer")

		assert.Equal(t, StateFailed, s.State)
		assert.ErrorIs(t, s.Err, completion.ErrMalformed)
		assert.Empty(t, s.Answer)
	})

	t.Run("zero tolerance", func(t *testing.T) {
		c := &scriptedCompleter{script: []reply{malformed(), answer("unused")}}
		loop := newTestLoop(t, c, catalogTool(), WithMalformedRetries(0))

		s := loop.Run(context.Background(), "", "razer")
		assert.Equal(t, StateFailed, s.State)
		assert.Equal(t, 1, c.calls())
	})
}

func TestLoop_CompletionFailure(t *testing.T) {
	apiErr := fmt.Errorf("%w: status 503", completion.ErrCompletionFailed)
	c := &scriptedCompleter{script: []reply{{err: apiErr}, answer("unused")}}
	loop := newTestLoop(t, c, catalogTool())

	s := loop.Run(context.Background(), "", "razer")

	assert.Equal(t, StateFailed, s.State)
	assert.ErrorIs(t, s.Err, completion.ErrCompletionFailed)
	assert.Equal(t, 1, c.calls())
}

func TestLoop_ToolErrorIsObserved(t *testing.T) {
	tool := &fakeTool{name: "queryCatalog", err: errors.New("catalog offline")}
	c := &scriptedCompleter{script: []reply{toolCall("queryCatalog", "razer"), answer("Sorry, the catalog is unavailable.")}}
	loop := newTestLoop(t, c, tool)

	s := loop.Run(context.Background(), "", "razer")

	require.Equal(t, StateAnswered, s.State)
	require.Len(t, s.Steps, 1)
	assert.JSONEq(t, `{"error":"catalog offline"}`, s.Steps[0].Observation)
}

func TestLoop_CancelledContext(t *testing.T) {
	cause := errors.New("deadline reached")
	ctx, cancel := context.WithCancelCause(context.Background())

	c := &scriptedCompleter{script: []reply{toolCall("queryCatalog", "razer")}}
	tool := catalogTool()
	loop := newTestLoop(t, completion.CompleterFunc(func(ctx context.Context, req completion.Request) (completion.Response, error) {
		cancel(cause)
		return c.Complete(ctx, req)
	}), tool)

	s := loop.Run(ctx, "", "razer")

	assert.Equal(t, StateFailed, s.State)
	assert.ErrorIs(t, s.Err, cause)
	assert.Equal(t, 1, s.Iterations)
}

// ==========================
// Properties and tracing
// ==========================

func TestLoop_IterationBoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// kinds: 0 tool request, 1 unknown tool, 2 malformed, 3 answer
	properties.Property("sessions terminate within the cap", prop.ForAll(
		func(kinds []int, maxIterations int) bool {
			script := make([]reply, 0, len(kinds)+1)
			for _, k := range kinds {
				switch k {
				case 0:
					script = append(script, toolCall("queryCatalog", "x"))
				case 1:
					script = append(script, toolCall("other", "x"))
				case 2:
					script = append(script, malformed())
				default:
					script = append(script, answer("ok"))
				}
			}
			script = append(script, toolCall("queryCatalog", "x"))

			c := &scriptedCompleter{script: script}
			reg, _ := registry.New(catalogTool())
			loop := New(c, reg, logger.NewNoOpLogger(), WithMaxIterations(maxIterations))

			s := loop.Run(context.Background(), "", "anything")
			if !s.Terminal() || s.Iterations > maxIterations || c.calls() > maxIterations {
				return false
			}
			if s.State == StateExhausted {
				return s.Iterations == maxIterations
			}
			return s.State == StateAnswered || s.State == StateFailed
		},
		gen.SliceOf(gen.IntRange(0, 3)),
		gen.IntRange(1, DefaultMaxIterations),
	))

	properties.TestingRun(t)
}

func TestLoop_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	c := &scriptedCompleter{script: []reply{toolCall("queryCatalog", "razer"), answer("done")}}
	loop := newTestLoop(t, c, catalogTool(), WithTracer(provider.Tracer("test")))
	loop.Run(context.Background(), "", "razer")

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"orchestrator.think", "orchestrator.act", "orchestrator.think"}, names)
}
