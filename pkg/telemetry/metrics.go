// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/openserv-labs/agent-go/pkg/errors"
)

// AgentMetrics tracks tool executions, chat completions and errors for
// production monitoring. All record methods are safe on a nil receiver so
// instrumented code never has to branch on whether metrics are enabled.
type AgentMetrics struct {
	toolCounter   metric.Int64Counter
	toolLatency   metric.Float64Histogram
	llmCounter    metric.Int64Counter
	llmLatency    metric.Float64Histogram
	actionCounter metric.Int64Counter
	errorCounter  metric.Int64Counter
}

// NewAgentMetrics creates a metrics tracker on the global meter provider.
func NewAgentMetrics() (*AgentMetrics, error) {
	meter := otel.Meter("openserv/agent")

	toolCounter, err := meter.Int64Counter(
		"openserv.tool.calls",
		metric.WithDescription("Total tool executions by name and outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolLatency, err := meter.Float64Histogram(
		"openserv.tool.duration",
		metric.WithDescription("Tool execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	llmCounter, err := meter.Int64Counter(
		"openserv.llm.calls",
		metric.WithDescription("Total chat completion calls by model"),
	)
	if err != nil {
		return nil, err
	}

	llmLatency, err := meter.Float64Histogram(
		"openserv.llm.duration",
		metric.WithDescription("Chat completion duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	actionCounter, err := meter.Int64Counter(
		"openserv.actions.total",
		metric.WithDescription("Actions received by type"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"openserv.errors.total",
		metric.WithDescription("Errors by code and route"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		toolCounter:   toolCounter,
		toolLatency:   toolLatency,
		llmCounter:    llmCounter,
		llmLatency:    llmLatency,
		actionCounter: actionCounter,
		errorCounter:  errorCounter,
	}, nil
}

// RecordToolCall records one tool execution.
func (m *AgentMetrics) RecordToolCall(ctx context.Context, name string, durationMs float64, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrToolName, name),
		attribute.Bool(AttrToolSuccess, success),
	)
	m.toolCounter.Add(ctx, 1, attrs)
	m.toolLatency.Record(ctx, durationMs, attrs)
}

// RecordLLMCall records one chat completion call.
func (m *AgentMetrics) RecordLLMCall(ctx context.Context, model string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrLLMModel, model))
	m.llmCounter.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, durationMs, attrs)
}

// RecordAction records one received action by type.
func (m *AgentMetrics) RecordAction(ctx context.Context, actionType string) {
	if m == nil {
		return
	}
	m.actionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrActionType, actionType),
	))
}

// RecordError records one failure by error code and route.
func (m *AgentMetrics) RecordError(ctx context.Context, err error, route string) {
	if m == nil || err == nil {
		return
	}
	code := string(errors.AsAgentError(err).Code)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.String(AttrRoute, route),
	))
}
