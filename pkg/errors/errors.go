// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for the
// agent SDK. Every error that crosses a package boundary is an *AgentError
// so callers can branch on Code and transports can map it to a status.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies SDK errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input failed shape validation.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a referenced capability or resource is unknown.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeDuplicateTool indicates a capability name was registered twice.
	CodeDuplicateTool ErrorCode = "DUPLICATE_TOOL"

	// CodeToolFailure indicates a capability execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeLLMError indicates a chat-completion call failed.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeEmptyResponse indicates the chat completion carried no message.
	CodeEmptyResponse ErrorCode = "EMPTY_RESPONSE"

	// CodeMaxIterations indicates the conversation loop hit its budget.
	CodeMaxIterations ErrorCode = "MAX_ITERATIONS_EXCEEDED"

	// CodePlatformError indicates a platform API call failed.
	CodePlatformError ErrorCode = "PLATFORM_ERROR"

	// CodeConfigError indicates missing or invalid configuration.
	CodeConfigError ErrorCode = "CONFIG_ERROR"
)

// AgentError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type AgentError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AgentError) MarshalJSON() ([]byte, error) {
	payload := map[string]interface{}{
		"code":        string(e.Code),
		"message":     e.Message,
		"recoverable": e.Recoverable,
	}
	if e.Err != nil {
		payload["cause"] = e.Err.Error()
	}
	if len(e.Context) > 0 {
		payload["context"] = e.Context
	}
	return json.Marshal(payload)
}

// New creates a new AgentError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *AgentError {
	return &AgentError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// Newf creates a new AgentError with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *AgentError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AgentError) WithContext(key string, value interface{}) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be retried.
// Returns the error for method chaining.
func (e *AgentError) WithRecoverable(recoverable bool) *AgentError {
	e.Recoverable = recoverable
	return e
}

// WithStatusCode overrides the HTTP status derived from the code.
func (e *AgentError) WithStatusCode(status int) *AgentError {
	e.StatusCode = status
	return e
}

// AsAgentError converts err to an *AgentError, wrapping unknown errors
// as CodeInternal. Returns nil for a nil error.
func AsAgentError(err error) *AgentError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AgentError); ok {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeInvalidInput:
		return 400
	case CodeDuplicateTool, CodeConfigError:
		return 409
	case CodeLLMError, CodePlatformError:
		return 502
	default:
		return 500
	}
}
