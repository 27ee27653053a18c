// internal/assistant/outcome.go
package assistant

import (
	"context"
	"errors"
	"time"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/completion"
	"shopping-assistant/internal/assistant/orchestrator"
	commonerrors "shopping-assistant/internal/common/errors"
)

var ErrInputMissing = errors.New("INPUT_MISSING")

// Outcome is the classified result of one request.
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeRejected  Outcome = "rejected"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed-out"
)

// User-facing messages per outcome.
const (
	MessageInputMissing = "Input is required"
	MessageTimeout      = "The request took too long to process. Please try a simpler query."
	MessageExhausted    = "I couldn't find an answer within the allowed number of steps. Please try a more specific query."
	MessageFailed       = "AI processing failed"
)

// OutcomeOf classifies an Ask error.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAnswered
	case errors.Is(err, ErrInputMissing):
		return OutcomeRejected
	case isTimeout(err):
		return OutcomeTimedOut
	case errors.Is(err, orchestrator.ErrExhausted):
		return OutcomeExhausted
	default:
		return OutcomeFailed
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Message returns the text shown to the user for a failed outcome.
func Message(o Outcome) string {
	switch o {
	case OutcomeRejected:
		return MessageInputMissing
	case OutcomeTimedOut:
		return MessageTimeout
	case OutcomeExhausted:
		return MessageExhausted
	default:
		return MessageFailed
	}
}

// StandardError converts an Ask error into the shared taxonomy for callers across process
// boundaries. The user message is carried as metadata.
func StandardError(err error, reply Reply, deadline time.Duration) *commonerrors.StandardError {
	var stdErr *commonerrors.StandardError
	switch {
	case errors.Is(err, ErrInputMissing):
		stdErr = commonerrors.NewInputMissingError()
	case isTimeout(err):
		stdErr = commonerrors.NewAssistantTimeoutError(deadline)
	case errors.Is(err, orchestrator.ErrExhausted):
		stdErr = commonerrors.NewIterationExhaustedError(reply.Iterations)
	case errors.Is(err, completion.ErrMalformed):
		stdErr = commonerrors.NewCompletionMalformedError(err.Error())
	case errors.Is(err, completion.ErrCompletionFailed):
		stdErr = commonerrors.NewCompletionFailedError(err)
	case errors.Is(err, catalog.ErrStoreQueryFailed):
		stdErr = commonerrors.NewStoreQueryFailedError(err)
	default:
		stdErr = commonerrors.NewInternalError(err)
	}
	stdErr.WithMetadata("userMessage", Message(OutcomeOf(err)))
	if reply.SessionID != "" {
		stdErr.WithMetadata("sessionId", reply.SessionID)
	}
	return stdErr
}
