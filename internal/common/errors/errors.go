package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ============================================================================
// ERROR CODES
// ============================================================================

type ErrorCode string

const (
	// Inbound message errors: the message is dropped.
	ErrCodeDecode        ErrorCode = "DECODE_ERROR"
	ErrCodeTopicMismatch ErrorCode = "TOPIC_MISMATCH"
	ErrCodeUnknownTopic  ErrorCode = "UNKNOWN_TOPIC"

	// Document store outcomes
	ErrCodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeTransient       ErrorCode = "TRANSIENT"
	ErrCodeAmbiguousParent ErrorCode = "AMBIGUOUS_PARENT"

	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrAlreadyExists   = &StandardError{Code: ErrCodeAlreadyExists}
	ErrNotFound        = &StandardError{Code: ErrCodeNotFound}
	ErrTransient       = &StandardError{Code: ErrCodeTransient}
	ErrValidation      = &StandardError{Code: ErrCodeValidationFailed}
	ErrMaxRetries      = &StandardError{Code: ErrCodeMaxRetriesExceeded}
	ErrAmbiguousParent = &StandardError{Code: ErrCodeAmbiguousParent}
)

// ============================================================================
// STANDARD ERROR
// ============================================================================

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns e after attaching key/value.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

func NewDecodeError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecode,
		Message:   "Invalid message JSON",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTopicMismatchError(messageTopic, channelTopic string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTopicMismatch,
		Message:   "Message topic does not match the channel topic",
		Details:   fmt.Sprintf("message topic: %s, channel topic: %s", messageTopic, channelTopic),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnknownTopicError(topic string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownTopic,
		Message:   "No processor registered for topic",
		Details:   fmt.Sprintf("topic: %s", topic),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAlreadyExistsError(index, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyExists,
		Message:   "Document already exists",
		Details:   fmt.Sprintf("id: %s %q already exists", id, index),
		Retryable: false,
		Metadata:  map[string]interface{}{"index": index, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(index, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Document not found",
		Details:   fmt.Sprintf("id: %s %q not found", id, index),
		Retryable: false,
		Metadata:  map[string]interface{}{"index": index, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewChildNotFoundError reports a nested element (WorkPeriod, payment, ...)
// that no parent document contains.
func NewChildNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Nested document not found",
		Details:   fmt.Sprintf("id: %s %q not found", id, entity),
		Retryable: false,
		Metadata:  map[string]interface{}{"entity": entity, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

func NewTransientError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransient,
		Message:   "Backing service request failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewAmbiguousParentError(index, path, id string, hits int) *StandardError {
	return &StandardError{
		Code:      ErrCodeAmbiguousParent,
		Message:   "Nested id matched more than one parent document",
		Details:   fmt.Sprintf("index: %s, path: %s, id: %s, hits: %d", index, path, id, hits),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationFailedError(schema string, violations []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Payload failed schema validation",
		Details:   fmt.Sprintf("schema: %s, violations: %v", schema, violations),
		Retryable: false,
		Metadata:  map[string]interface{}{"violations": violations},
		Timestamp: time.Now().UTC(),
	}
}

func NewMaxRetriesExceededError(topic, id string, retry, maxRetry int) *StandardError {
	return &StandardError{
		Code:      ErrCodeMaxRetriesExceeded,
		Message:   "Dropped after exhausting retries",
		Details:   fmt.Sprintf("retry: %d for topic: %s id: %s exceeds the max retry: %d", retry, topic, id, maxRetry),
		Retryable: false,
		Metadata:  map[string]interface{}{"topic": topic, "id": id, "retry": retry},
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return stderrors.Is(err, ErrAlreadyExists)
}

func IsTransient(err error) bool {
	return stderrors.Is(err, ErrTransient)
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeDecode, ErrCodeTopicMismatch, ErrCodeUnknownTopic, ErrCodeValidationFailed:
		return "input"
	case ErrCodeAlreadyExists, ErrCodeNotFound, ErrCodeAmbiguousParent:
		return "state"
	case ErrCodeTransient:
		return "infrastructure"
	case ErrCodeMaxRetriesExceeded:
		return "retry"
	default:
		return "internal"
	}
}
