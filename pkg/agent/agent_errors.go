// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/openserv-labs/agent-go/pkg/errors"
)

// WrapLLMError wraps a chat completion failure with model context.
func WrapLLMError(err error, model string) *errors.AgentError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*errors.AgentError); ok {
		return ae
	}
	return errors.New(errors.CodeLLMError, "chat completion failed", err).
		WithContext("model", model).
		WithRecoverable(true)
}

// WrapToolError wraps a capability execution failure with call context.
func WrapToolError(err error, toolName, toolCallID string) *errors.AgentError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*errors.AgentError); ok {
		return ae
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed", err).
		WithContext("tool_name", toolName).
		WithContext("tool_call_id", toolCallID)
}

// NewNotFoundError reports an unregistered tool name. The message shape is
// part of the HTTP contract.
func NewNotFoundError(toolName string) *errors.AgentError {
	return errors.Newf(errors.CodeNotFound, "Tool %q not found", toolName).
		WithContext("tool_name", toolName)
}

// NewMaxIterationsError reports an exhausted conversation loop budget.
func NewMaxIterationsError(maxIterations int) *errors.AgentError {
	return errors.Newf(errors.CodeMaxIterations, "no final response after %d iterations", maxIterations).
		WithContext("max_iterations", maxIterations)
}
