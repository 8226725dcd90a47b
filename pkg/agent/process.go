// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/llm"
	"github.com/openserv-labs/agent-go/pkg/telemetry"
)

// maxIterations bounds the conversation loop: a misbehaving model that
// never stops requesting tools cannot ping-pong forever.
const maxIterations = 10

// ProcessParams seeds one run of the conversation loop.
type ProcessParams struct {
	Messages []llm.Message
	Action   *action.Action
}

// Process drives the bounded tool-calling loop against the chat
// completion provider. It returns the first completion that requests no
// tool calls, or fails once the iteration budget is exhausted. All
// returned errors have already passed through the error handler with
// context "process".
func (a *Agent) Process(ctx context.Context, params ProcessParams) (*llm.ChatResponse, error) {
	if a.llm == nil {
		err := errors.New(errors.CodeConfigError, "no chat completion provider configured", nil)
		a.notify(ctx, err, "process")
		return nil, err
	}

	runID := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "Agent.Process", trace.WithAttributes(
		telemetry.RunAttributes(a.name, runID, "", 0)...,
	))
	defer span.End()

	messages := append([]llm.Message(nil), params.Messages...)
	var tools []llm.Tool
	if a.registry.Len() > 0 {
		tools = a.registry.Definitions()
	}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		resp, err := a.chatTurn(ctx, messages, tools)
		if err != nil {
			span.RecordError(err)
			a.notify(ctx, err, "process")
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			a.log.Debug("agent.process.done",
				"run_id", runID,
				"iterations", iteration,
			)
			return resp, nil
		}

		results := a.runToolCalls(ctx, resp.ToolCalls, params.Action, messages)
		messages = append(messages, resp.AssistantTurn())
		messages = append(messages, results...)
	}

	err := NewMaxIterationsError(maxIterations)
	span.RecordError(err)
	a.notify(ctx, err, "process")
	return nil, err
}

// chatTurn makes one chat completion call under its own span, recording
// token usage and the number of tool calls the model requested.
func (a *Agent) chatTurn(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.ChatResponse, error) {
	ctx, span := a.tracer.Start(ctx, "Agent.LLMCall", trace.WithAttributes(
		telemetry.LLMAttributes(a.model, len(messages), 0)...,
	))
	defer span.End()

	start := time.Now()
	resp, err := a.llm.Chat(ctx, llm.ChatRequest{
		Model:    a.model,
		Messages: messages,
		Tools:    tools,
	})
	a.metrics.RecordLLMCall(ctx, a.model, float64(time.Since(start))/float64(time.Millisecond))
	if err != nil {
		wrapped := WrapLLMError(err, a.model)
		span.RecordError(wrapped)
		return nil, wrapped
	}
	if resp == nil {
		return nil, errors.New(errors.CodeEmptyResponse, "chat completion carried no message", nil)
	}

	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	if len(resp.ToolCalls) > 0 {
		span.SetAttributes(attribute.Int(telemetry.AttrLLMToolCalls, len(resp.ToolCalls)))
	}
	return resp, nil
}

// runToolCalls executes one turn's tool calls concurrently. Results come
// back in call order regardless of completion order, and a failing call
// yields an error-payload result instead of aborting its siblings.
func (a *Agent) runToolCalls(ctx context.Context, calls []llm.ToolCall, act *action.Action, history []llm.Message) []llm.Message {
	results := make([]llm.Message, len(calls))
	var wg conc.WaitGroup
	for i, call := range calls {
		i, call := i, call
		wg.Go(func() {
			results[i] = llm.ToolMessage(call.ID, a.executeToolCall(ctx, call, act, history))
		})
	}
	wg.Wait()
	return results
}

// executeToolCall runs a single model-requested call and always produces
// tool-result content: the capability's output, or {"error": message} on
// any failure. Failures notify the handler with context "tool_execution".
func (a *Agent) executeToolCall(ctx context.Context, call llm.ToolCall, act *action.Action, history []llm.Message) string {
	var raw any
	if call.Function.Arguments != "" {
		raw = json.RawMessage(call.Function.Arguments)
	}
	result, err := a.dispatch(ctx, call.Function.Name, raw, act, history, call.ID)
	if err != nil {
		a.notify(ctx, WrapToolError(err, call.Function.Name, call.ID), "tool_execution")
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(payload)
	}
	return result
}
