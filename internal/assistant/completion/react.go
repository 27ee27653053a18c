// internal/assistant/completion/react.go
package completion

import (
	"fmt"
	"strings"
)

const (
	finalAnswerMarker = "Final Answer:"
	actionMarker      = "Action:"
	actionInputMarker = "Action Input:"
	observationMarker = "Observation:"
)

// ParseText interprets a plain-text reply. Models without native tool calling answer in the
// ReAct layout ("Action: tool" / "Action Input: ..." or "Final Answer: ..."); any other
// non-empty text is taken as the answer when toolsDeclared is false or no markers appear.
func ParseText(content string, toolsDeclared bool) (Response, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return Response{}, fmt.Errorf("%w: empty completion", ErrMalformed)
	}
	if !toolsDeclared {
		return Response{Answer: text}, nil
	}

	finalAt := strings.LastIndex(text, finalAnswerMarker)
	actionAt := strings.Index(text, actionMarker)

	switch {
	case finalAt >= 0 && actionAt >= 0:
		return Response{}, fmt.Errorf("%w: reply has both a final answer and an action", ErrMalformed)
	case finalAt >= 0:
		answer := strings.TrimSpace(text[finalAt+len(finalAnswerMarker):])
		if answer == "" {
			return Response{}, fmt.Errorf("%w: empty final answer", ErrMalformed)
		}
		return Response{Answer: answer}, nil
	case actionAt >= 0:
		return parseAction(text, actionAt)
	default:
		return Response{Answer: text}, nil
	}
}

func parseAction(text string, actionAt int) (Response, error) {
	rest := text[actionAt+len(actionMarker):]
	inputAt := strings.Index(rest, actionInputMarker)
	if inputAt < 0 {
		return Response{}, fmt.Errorf("%w: action without %q", ErrMalformed, actionInputMarker)
	}

	name := strings.TrimSpace(rest[:inputAt])
	if name == "" {
		return Response{}, fmt.Errorf("%w: action without a tool name", ErrMalformed)
	}

	args := rest[inputAt+len(actionInputMarker):]
	if i := strings.Index(args, observationMarker); i >= 0 {
		args = args[:i]
	}

	return Response{
		ToolCall: &ToolCall{Name: name, Arguments: unfence(args)},
		Thought:  strings.TrimSpace(text[:actionAt]),
	}, nil
}

// unfence strips a markdown code fence around the action input.
func unfence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{\"[") {
		// Language tag such as ```json
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
