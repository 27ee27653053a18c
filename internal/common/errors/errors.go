// Package errors carries the assistant's error taxonomy across process boundaries
// and converts it to BPMN errors for Zeebe.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputMissing               ErrorCode = "INPUT_MISSING"
	ErrCodeInputInvalid               ErrorCode = "INPUT_INVALID"
	ErrCodeToolPayloadUnrecognized    ErrorCode = "TOOL_PAYLOAD_UNRECOGNIZED"
	ErrCodeStoreQueryFailed           ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeCompletionMalformed        ErrorCode = "COMPLETION_SERVICE_MALFORMED"
	ErrCodeCompletionFailed           ErrorCode = "COMPLETION_SERVICE_FAILED"
	ErrCodeIterationExhausted         ErrorCode = "ITERATION_EXHAUSTED"
	ErrCodeAssistantTimeout           ErrorCode = "ASSISTANT_TIMEOUT"
	ErrCodeNotificationSendFailed     ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeNotificationChannelUnknown ErrorCode = "NOTIFICATION_CHANNEL_UNKNOWN"
	ErrCodeInternal                   ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputMissingError is raised before any assistant logic runs.
func NewInputMissingError() *StandardError {
	return newError(ErrCodeInputMissing, "Input is required", "", false)
}

// NewInputInvalidError reports a request body that failed schema validation.
func NewInputInvalidError(details string) *StandardError {
	return newError(ErrCodeInputInvalid, "Request payload is invalid", details, false)
}

// NewStoreQueryFailedError wraps a catalog store failure.
func NewStoreQueryFailedError(err error) *StandardError {
	return newError(ErrCodeStoreQueryFailed, "Catalog query failed", errDetails(err), true)
}

// NewCompletionMalformedError reports completion output that was neither an answer nor a tool request.
func NewCompletionMalformedError(details string) *StandardError {
	return newError(ErrCodeCompletionMalformed, "Completion service returned malformed output", details, true)
}

// NewCompletionFailedError wraps a transport or API failure of the completion service.
func NewCompletionFailedError(err error) *StandardError {
	return newError(ErrCodeCompletionFailed, "Completion service request failed", errDetails(err), true)
}

// NewIterationExhaustedError reports a loop that hit its cap without answering.
func NewIterationExhaustedError(iterations int) *StandardError {
	return newError(ErrCodeIterationExhausted, "Iteration limit reached without an answer",
		fmt.Sprintf("iterations: %d", iterations), false)
}

// NewAssistantTimeoutError reports an expired request deadline.
func NewAssistantTimeoutError(deadline time.Duration) *StandardError {
	return newError(ErrCodeAssistantTimeout, "Assistant deadline exceeded",
		fmt.Sprintf("deadline: %s", deadline), true)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, errDetails(err)), true)
}

// NewNotificationChannelUnknownError rejects an unsupported delivery channel.
func NewNotificationChannelUnknownError(channel string) *StandardError {
	return newError(ErrCodeNotificationChannelUnknown, "Unsupported notification channel",
		fmt.Sprintf("channel: %s", channel), false)
}

// NewInternalError wraps anything that does not fit the taxonomy.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreQueryFailed,
		ErrCodeCompletionFailed,
		ErrCodeNotificationSendFailed:
		return 3
	case ErrCodeCompletionMalformed:
		return 2
	case ErrCodeAssistantTimeout:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "TOOL"):
		return "CATALOG"
	case strings.Contains(codeStr, "COMPLETION") || strings.Contains(codeStr, "ITERATION") || strings.Contains(codeStr, "ASSISTANT"):
		return "AI"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
