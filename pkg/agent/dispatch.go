// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/capability"
	"github.com/openserv-labs/agent-go/pkg/llm"
	"github.com/openserv-labs/agent-go/pkg/telemetry"
)

// ToolRequest is the body of a POST /tools/{toolName} invocation.
type ToolRequest struct {
	Args     json.RawMessage `json:"args"`
	Action   *action.Action  `json:"action,omitempty"`
	Messages []llm.Message   `json:"messages,omitempty"`
}

// HandleToolRoute validates and executes a named capability. Any failure
// is routed through the error handler and returned to the caller, so HTTP
// callers observe a structured failure while the handler side channel
// still fires.
func (a *Agent) HandleToolRoute(ctx context.Context, name string, req ToolRequest) (string, error) {
	var raw any
	if len(req.Args) > 0 {
		raw = req.Args
	}
	result, err := a.dispatch(ctx, name, raw, req.Action, req.Messages, "")
	if err != nil {
		a.notify(ctx, err, "handle_tool_route")
		return "", err
	}
	return result, nil
}

// dispatch is the shared lookup-validate-execute pipeline. It does not
// notify the error handler; each entry point owns its own context tag.
// callID is the model's tool-call correlation ID, empty on HTTP dispatch.
func (a *Agent) dispatch(ctx context.Context, name string, rawArgs any, act *action.Action, messages []llm.Message, callID string) (string, error) {
	c, ok := a.registry.Find(name)
	if !ok {
		return "", NewNotFoundError(name)
	}

	// Validation failures carry the schema's per-field diagnostics
	// unmodified; the capability never sees unvalidated input.
	args, err := c.Schema().Validate(rawArgs)
	if err != nil {
		return "", err
	}

	ctx, span := a.tracer.Start(ctx, "Agent.ToolCall", trace.WithAttributes(
		attribute.String(telemetry.AttrToolName, name),
		attribute.String(telemetry.AttrToolCallID, callID),
	))
	defer span.End()

	start := time.Now()
	result, err := c.Execute(ctx, capability.Invocation{
		Args:     args,
		Action:   act,
		Messages: messages,
		Platform: a.platform,
	})
	durationMs := float64(time.Since(start)) / float64(time.Millisecond)
	span.SetAttributes(telemetry.ToolCallAttributes(name, callID, durationMs, err == nil)...)
	a.metrics.RecordToolCall(ctx, name, durationMs, err == nil)
	if err != nil {
		span.RecordError(err)
		return "", WrapToolError(err, name, "")
	}
	return result, nil
}
