// Package completion is the assistant's view of the external completion service: given a
// transcript and the declared tools it produces either a final answer or one tool request.
package completion

import (
	"context"
	"errors"

	"shopping-assistant/pkg/registry"
)

var (
	// ErrMalformed marks output that is neither a usable answer nor a usable tool request.
	ErrMalformed = errors.New("COMPLETION_SERVICE_MALFORMED")
	// ErrCompletionFailed marks transport and API failures.
	ErrCompletionFailed = errors.New("COMPLETION_SERVICE_FAILED")
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one transcript entry. Assistant messages may carry the tool call they requested;
// tool messages answer a call by ID.
type Message struct {
	Role       Role
	Content    string
	ToolCall   *ToolCall
	ToolCallID string
}

// ToolCall is a request to invoke a declared tool. Arguments is the raw text the service produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Request struct {
	Messages []Message
	Tools    []registry.ToolSpec
}

// Response holds exactly one of Answer or ToolCall.
type Response struct {
	Answer   string
	ToolCall *ToolCall
	// Thought is any text the service emitted alongside a tool request.
	Thought string
}

// IsToolRequest reports whether the service asked for a tool.
func (r Response) IsToolRequest() bool {
	return r.ToolCall != nil
}

// Completer is the completion service capability. Implementations return ErrMalformed for
// output that cannot be interpreted and ErrCompletionFailed for everything else.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (Response, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
