// internal/assistant/completion/openai.go
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"shopping-assistant/internal/common/config"
	httpclient "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/pkg/registry"
)

// ChatClient is the subset of the go-openai client the adapter uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	chat        ChatClient
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	logger      logger.Logger
}

// NewOpenAIClient builds a client for cfg. BaseURL selects a compatible provider such as Groq.
func NewOpenAIClient(cfg config.LLMConfig, log logger.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpclient.NewClient(config.GetDuration(cfg.RequestTimeout), log)
	return NewOpenAIClientWithChat(openai.NewClientWithConfig(clientCfg), cfg, log), nil
}

// NewOpenAIClientWithChat wraps an existing chat client.
func NewOpenAIClientWithChat(chat ChatClient, cfg config.LLMConfig, log logger.Logger) *OpenAIClient {
	c := &OpenAIClient{
		chat:        chat,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      log.With(map[string]interface{}{"component": "completion", "model": cfg.Model}),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, fmt.Errorf("%w: no messages", ErrCompletionFailed)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.CompletionRequests.WithLabelValues("cancelled").Inc()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Response{}, ctxErr
			}
			// The limiter refuses waits that would outlast the deadline.
			if _, ok := ctx.Deadline(); ok {
				return Response{}, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			return Response{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
		}
	}

	tools, err := encodeTools(req.Tools)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    encodeMessages(req.Messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Tools:       tools,
	}
	if len(tools) > 0 {
		request.ToolChoice = "auto"
	}

	resp, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.CompletionRequests.WithLabelValues("cancelled").Inc()
			return Response{}, ctxErr
		}
		metrics.CompletionRequests.WithLabelValues("error").Inc()
		c.logger.Warn("Completion request failed", map[string]interface{}{
			"status": statusCode(err),
			"error":  err.Error(),
		})
		return Response{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	out, err := interpret(resp, len(tools) > 0)
	if err != nil {
		metrics.CompletionRequests.WithLabelValues("malformed").Inc()
		c.logger.Warn("Completion output could not be interpreted", map[string]interface{}{
			"error": err.Error(),
		})
		return Response{}, err
	}

	metrics.CompletionRequests.WithLabelValues("ok").Inc()
	c.logger.Debug("Completion received", map[string]interface{}{
		"toolRequest":      out.IsToolRequest(),
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
	})
	return out, nil
}

func interpret(resp openai.ChatCompletionResponse, toolsDeclared bool) (Response, error) {
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: no choices", ErrMalformed)
	}
	msg := resp.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		// One tool per step; further calls in the same message are ignored.
		call := msg.ToolCalls[0]
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return Response{}, fmt.Errorf("%w: tool call without a name", ErrMalformed)
		}
		return Response{
			ToolCall: &ToolCall{ID: call.ID, Name: name, Arguments: call.Function.Arguments},
			Thought:  strings.TrimSpace(msg.Content),
		}, nil
	}

	return ParseText(msg.Content, toolsDeclared)
}

func encodeMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.ToolCall != nil {
			msg.ToolCalls = []openai.ToolCall{{
				ID:   m.ToolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      m.ToolCall.Name,
					Arguments: m.ToolCall.Arguments,
				},
			}}
		}
		out = append(out, msg)
	}
	return out
}

func encodeTools(specs []registry.ToolSpec) ([]openai.Tool, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		params, err := json.Marshal(spec.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal tool %s schema: %w", spec.Name, err)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: describe(spec),
				Parameters:  json.RawMessage(params),
			},
		})
	}
	return tools, nil
}

func describe(spec registry.ToolSpec) string {
	if len(spec.Examples) == 0 {
		return spec.Description
	}
	return spec.Description + "\n\nMore examples:\n- " + strings.Join(spec.Examples, "\n- ")
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
