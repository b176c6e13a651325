package errors

import (
	stderrors "errors"
)

// ErrorHandler logs failed message handling with standardized fields.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it at error level with the given fields and
// returns the normalized error.
func (h *ErrorHandler) Handle(err error, fields map[string]interface{}) *StandardError {
	stdErr := Normalize(err)
	h.logger.Error("Message handling failed", h.fields(stdErr, err, fields))
	return stdErr
}

// HandleRetryable logs at warn level. Used when the failure was handed to the
// retry scheduler.
func (h *ErrorHandler) HandleRetryable(err error, fields map[string]interface{}) *StandardError {
	stdErr := Normalize(err)
	h.logger.Warn("Message handling deferred for retry", h.fields(stdErr, err, fields))
	return stdErr
}

func (h *ErrorHandler) fields(stdErr *StandardError, original error, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"error":         original.Error(),
	}
	for k, v := range stdErr.Metadata {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
