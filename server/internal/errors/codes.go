package errors

import (
	"fmt"
)

// ErrorCode represents a specific failure class of the chat pipeline.
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates a missing or malformed request body or file.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the conversation is absent or not owned by the caller.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeTranscriptionFailed indicates the speech-to-text step failed.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	// ErrCodeCompletionFailed indicates the chat completion step failed.
	ErrCodeCompletionFailed ErrorCode = "COMPLETION_FAILED"
	// ErrCodeSynthesisFailed indicates the text-to-speech step failed.
	ErrCodeSynthesisFailed ErrorCode = "SYNTHESIS_FAILED"
	// ErrCodeStoreFailed indicates a persistence failure.
	ErrCodeStoreFailed ErrorCode = "STORE_FAILED"
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimitExceeded indicates the per-user rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// PipelineError is a structured error carried from the pipeline to the
// request boundary, where it is mapped to an HTTP status.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *PipelineError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// InvalidInput creates an invalid input error.
func InvalidInput(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeInvalidInput, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeNotFound, Message: msg}
}

// TranscriptionFailed creates a transcription error.
func TranscriptionFailed(msg string, cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeTranscriptionFailed, Message: msg, Cause: cause}
}

// CompletionFailed creates a completion error.
func CompletionFailed(msg string, cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeCompletionFailed, Message: msg, Cause: cause}
}

// SynthesisFailed creates a synthesis error.
func SynthesisFailed(msg string, cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeSynthesisFailed, Message: msg, Cause: cause}
}

// StoreFailed creates a persistence error.
func StoreFailed(msg string, cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeStoreFailed, Message: msg, Cause: cause}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeUnauthorized, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if pErr, ok := err.(*PipelineError); ok {
		return pErr.Code == code
	}
	return false
}
