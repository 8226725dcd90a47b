// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for agent telemetry. LLM attributes follow the
// OpenTelemetry gen_ai conventions where applicable.
const (
	AttrAgentName      = "openserv.agent.name"
	AttrAgentRunID     = "openserv.agent.run_id"
	AttrAgentIteration = "openserv.agent.iteration"
	AttrActionType     = "openserv.action.type"
	AttrWorkspaceID    = "openserv.workspace.id"
	AttrTaskID         = "openserv.task.id"
	AttrTaskStatus     = "openserv.task.status"

	AttrToolName       = "openserv.tool.name"
	AttrToolCallID     = "openserv.tool.call_id"
	AttrToolDurationMs = "openserv.tool.duration_ms"
	AttrToolSuccess    = "openserv.tool.success"

	AttrErrorCode = "openserv.error.code"
	AttrRoute     = "openserv.route"

	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMToolCalls    = "gen_ai.tool_calls"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
)

// RunAttributes returns common attributes for a processing run span.
func RunAttributes(agentName, runID, actionType string, iteration int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrAgentRunID, runID),
	}
	if actionType != "" {
		attrs = append(attrs, attribute.String(AttrActionType, actionType))
	}
	if iteration > 0 {
		attrs = append(attrs, attribute.Int(AttrAgentIteration, iteration))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, callID string, durationMs float64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// LLMAttributes returns attributes for chat completion spans.
func LLMAttributes(model string, msgCount, toolCallCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if toolCallCount > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCallCount))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	return attrs
}

// TaskAttributes returns attributes for workspace task operations.
func TaskAttributes(workspaceID, taskID int64, status string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64(AttrWorkspaceID, workspaceID),
	}
	if taskID != 0 {
		attrs = append(attrs, attribute.Int64(AttrTaskID, taskID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrTaskStatus, status))
	}
	return attrs
}
