// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/assistant"
	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/completion"
	"shopping-assistant/internal/assistant/filter"
	"shopping-assistant/internal/assistant/orchestrator"
	"shopping-assistant/internal/assistant/synthesis"
	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/server"
	"shopping-assistant/internal/storage"
	askassistant "shopping-assistant/internal/workers/shopping/ask-assistant"
	"shopping-assistant/pkg/registry"
)

const productsFile = "../../configs/products.json"

// ==========================
// Scripted completion service
// ==========================

// llmScript answers the first agent turn with a catalog tool call and every later turn with a
// final answer naming the products it observed.
type llmScript struct {
	calls    atomic.Int32
	toolArgs string
	block    bool
}

func (s *llmScript) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if s.block {
			<-r.Context().Done()
			return
		}

		body, _ := io.ReadAll(r.Body)
		var req openai.ChatCompletionRequest
		if !assert.NoError(t, json.Unmarshal(body, &req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		last := req.Messages[len(req.Messages)-1]

		var msg openai.ChatCompletionMessage
		switch {
		case len(req.Tools) > 0 && last.Role == openai.ChatMessageRoleUser:
			msg = openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       "call_1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: catalog.ToolName, Arguments: s.toolArgs},
				}},
			}
		default:
			msg = openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Answer based on: " + last.Content}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: msg, FinishReason: openai.FinishReasonStop}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ==========================
// Stack wiring
// ==========================

type stack struct {
	service *assistant.Service
	http    *httptest.Server
}

func newStack(t *testing.T, mode string, deadlineMs int, llmURL string) *stack {
	log := logger.NewTestLogger(t)
	ctx := context.Background()

	products, err := storage.ReadProducts(productsFile)
	require.NoError(t, err)
	store := storage.NewMemoryCatalog()
	_, err = store.Load(ctx, products)
	require.NoError(t, err)

	acfg := config.AssistantConfig{
		Mode:             mode,
		FallbackToDirect: true,
		Deadline:         deadlineMs,
		MaxIterations:    5,
		MalformedRetries: 1,
		MaxRows:          catalog.MaxRows,
		Brands:           config.DefaultBrands,
		Categories:       config.DefaultCategories,
	}

	tool := catalog.NewTool(filter.NewResolver(filter.Vocabulary{Brands: acfg.Brands, Categories: acfg.Categories}), store, log)
	tools, err := registry.New(tool)
	require.NoError(t, err)

	completer, err := completion.NewOpenAIClient(config.LLMConfig{BaseURL: llmURL, APIKey: "test-key", Model: "test-model"}, log)
	require.NoError(t, err)

	var loop assistant.Runner
	if mode == config.ModeAgent {
		loop = orchestrator.New(completer, tools, log)
	}
	service := assistant.NewService(acfg, loop, tool, synthesis.New(completer, log), log)

	srv := httptest.NewServer(server.New(config.HTTPConfig{}, service, store, log).Handler())
	t.Cleanup(srv.Close)
	return &stack{service: service, http: srv}
}

func ask(t *testing.T, s *stack, input string) (int, map[string]string) {
	body, _ := json.Marshal(map[string]string{"input": input})
	resp, err := http.Post(s.http.URL+"/api/ai/ask", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

// ==========================
// End-to-end flows
// ==========================

func TestAgentPath_ToolRoundTrip(t *testing.T) {
	script := &llmScript{toolArgs: `{"input":"razer mice under 100"}`}
	llm := script.serve(t)
	s := newStack(t, config.ModeAgent, 5000, llm.URL)

	status, body := ask(t, s, "show me razer mice under 100")

	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body["response"], "Razer Viper Mini")
	assert.Contains(t, body["response"], "Logitech G502 HERO")
	assert.NotContains(t, body["response"], "Razer BlackWidow V4")
	assert.Equal(t, int32(2), script.calls.Load())
}

func TestAgentPath_StructuredToolInput(t *testing.T) {
	script := &llmScript{toolArgs: `{"input":{"brand":{"$regex":"razer","$options":"i"}},"limit":2}`}
	llm := script.serve(t)
	s := newStack(t, config.ModeAgent, 5000, llm.URL)

	reply, err := s.service.Ask(context.Background(), "razer products")

	require.NoError(t, err)
	require.Len(t, reply.Steps, 1)
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(reply.Steps[0].Observation), &views))
	assert.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, "Razer", v["brand"])
	}
}

func TestDirectPath(t *testing.T) {
	script := &llmScript{}
	llm := script.serve(t)
	s := newStack(t, config.ModeDirect, 5000, llm.URL)

	status, body := ask(t, s, "all logitech products")

	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body["response"], "User asked: all logitech products")
	assert.Contains(t, body["response"], "Logitech MX Keys S")
	assert.NotContains(t, body["response"], "Razer")
	assert.Equal(t, int32(1), script.calls.Load())
}

func TestInputMissing(t *testing.T) {
	script := &llmScript{}
	llm := script.serve(t)
	s := newStack(t, config.ModeAgent, 5000, llm.URL)

	status, body := ask(t, s, "   ")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, assistant.MessageInputMissing, body["error"])
	assert.Zero(t, script.calls.Load())
}

func TestTimeout(t *testing.T) {
	script := &llmScript{block: true}
	llm := script.serve(t)
	s := newStack(t, config.ModeAgent, 100, llm.URL)

	status, body := ask(t, s, "razer mice")

	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, assistant.MessageTimeout, body["error"])
}

func TestZeebeWorkerShareService(t *testing.T) {
	script := &llmScript{toolArgs: `{"input":"all hyperx products"}`}
	llm := script.serve(t)
	s := newStack(t, config.ModeAgent, 5000, llm.URL)

	handler := askassistant.NewHandler(askassistant.LoadConfig(config.WorkerConfig{}), s.service, nil, logger.NewTestLogger(t))
	out, err := handler.Execute(context.Background(), &askassistant.Input{Input: "hyperx headsets"})

	require.NoError(t, err)
	assert.Equal(t, string(assistant.OutcomeAnswered), out.Outcome)
	assert.Contains(t, out.Response, "HyperX Cloud II")
	assert.NotEmpty(t, out.SessionID)
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkCatalogTool_Call(b *testing.B) {
	products, err := storage.ReadProducts(productsFile)
	require.NoError(b, err)
	store := storage.NewMemoryCatalog(products...)
	tool := catalog.NewTool(filter.NewResolver(filter.Vocabulary{
		Brands:     config.DefaultBrands,
		Categories: config.DefaultCategories,
	}), store, logger.NewNoOpLogger())

	inputs := []string{
		`"all razer products"`,
		`"mice under 100"`,
		`{"input":{"category":"laptop"}}`,
		`"wireless noise cancelling"`,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tool.Call(context.Background(), inputs[i%len(inputs)])
	}
}
