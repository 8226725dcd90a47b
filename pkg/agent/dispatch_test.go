package agent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/openserv-labs/agent-go/pkg/capability"
	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/schema"
	"github.com/openserv-labs/agent-go/pkg/telemetry"
)

// recordSpans installs an in-memory span recorder as the global tracer
// provider for the duration of the test. Call before newTestAgent so the
// agent's tracer resolves against it.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func spanNamed(spans []sdktrace.ReadOnlySpan, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func toolReq(t *testing.T, args any) ToolRequest {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return ToolRequest{Args: raw}
}

func TestHandleToolRouteSuccess(t *testing.T) {
	a, rec := newTestAgent(t, WithCapabilities(echoCap(t)))

	result, err := a.HandleToolRoute(context.Background(), "echo", toolReq(t, map[string]any{"input": "hi"}))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result != "hi" {
		t.Fatalf("unexpected result: %q", result)
	}
	if len(rec.all()) != 0 {
		t.Fatalf("success must not notify the handler: %+v", rec.all())
	}
}

func TestHandleToolRouteUnknownTool(t *testing.T) {
	a, rec := newTestAgent(t)

	_, err := a.HandleToolRoute(context.Background(), "missing", toolReq(t, map[string]any{}))
	if err == nil {
		t.Fatal("unknown tool should fail")
	}
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Code != errors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if !strings.Contains(err.Error(), `Tool "missing" not found`) {
		t.Fatalf("message contract broken: %v", err)
	}
	events := rec.byTag("handle_tool_route")
	if len(events) != 1 {
		t.Fatalf("handler should fire exactly once, got %d", len(events))
	}
}

func TestHandleToolRouteValidationSkipsExecute(t *testing.T) {
	var invoked atomic.Int32
	counting := capability.MustNew("count", "counts invocations",
		schema.Object(map[string]any{
			"input": map[string]any{"type": "string"},
		}, "input"),
		func(ctx context.Context, inv capability.Invocation) (string, error) {
			invoked.Add(1)
			return "ok", nil
		})
	a, rec := newTestAgent(t, WithCapabilities(counting))

	_, err := a.HandleToolRoute(context.Background(), "count", toolReq(t, map[string]any{"input": 123}))
	if err == nil {
		t.Fatal("shape violation should fail")
	}
	var ve *schema.ValidationError
	if !stderrors.As(err, &ve) {
		t.Fatalf("validation diagnostics lost: %v", err)
	}
	if len(ve.Fields) == 0 || ve.Fields[0].Path != "input" {
		t.Fatalf("diagnostic path missing: %+v", ve.Fields)
	}
	if invoked.Load() != 0 {
		t.Fatal("execute must never observe unvalidated input")
	}
	if len(rec.byTag("handle_tool_route")) != 1 {
		t.Fatalf("handler notifications: %+v", rec.all())
	}

	// Valid args invoke execute exactly once.
	if _, err := a.HandleToolRoute(context.Background(), "count", toolReq(t, map[string]any{"input": "x"})); err != nil {
		t.Fatalf("valid dispatch failed: %v", err)
	}
	if invoked.Load() != 1 {
		t.Fatalf("execute should run exactly once, ran %d times", invoked.Load())
	}
}

func TestHandleToolRouteExecutionFailure(t *testing.T) {
	a, rec := newTestAgent(t, WithCapabilities(failingCap(t, "boom")))

	_, err := a.HandleToolRoute(context.Background(), "boom", toolReq(t, map[string]any{}))
	if err == nil {
		t.Fatal("execution failure should surface to the caller")
	}
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Code != errors.CodeToolFailure {
		t.Fatalf("expected tool-failure error, got %v", err)
	}
	if len(rec.byTag("handle_tool_route")) != 1 {
		t.Fatal("failure must also notify the handler")
	}
}

func TestDispatchPassesPlatformHandle(t *testing.T) {
	var sawPlatform atomic.Bool
	c := capability.MustNew("inspect", "checks the invocation context",
		schema.Object(map[string]any{}),
		func(ctx context.Context, inv capability.Invocation) (string, error) {
			sawPlatform.Store(inv.Platform != nil)
			return "", nil
		})
	a, _ := newTestAgent(t, WithCapabilities(c))

	if _, err := a.HandleToolRoute(context.Background(), "inspect", toolReq(t, map[string]any{})); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if !sawPlatform.Load() {
		t.Fatal("capabilities should receive the platform client")
	}
}

func TestToolCallSpanRecordsOutcome(t *testing.T) {
	recorder := recordSpans(t)
	a, _ := newTestAgent(t, WithCapabilities(echoCap(t), failingCap(t, "boom")))

	if _, err := a.dispatch(context.Background(), "echo", map[string]any{"input": "hi"}, nil, nil, "call-7"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if _, err := a.dispatch(context.Background(), "boom", map[string]any{}, nil, nil, "call-8"); err == nil {
		t.Fatal("failing capability should surface an error")
	}

	spans := spanNamed(recorder.Ended(), "Agent.ToolCall")
	if len(spans) != 2 {
		t.Fatalf("expected 2 tool-call spans, got %d", len(spans))
	}

	ok := spanAttrs(spans[0])
	if !ok[telemetry.AttrToolSuccess].AsBool() {
		t.Fatalf("successful call should record success: %v", ok)
	}
	if ok[telemetry.AttrToolCallID].AsString() != "call-7" {
		t.Fatalf("call ID lost: %v", ok)
	}
	if ok[telemetry.AttrToolDurationMs].AsFloat64() < 0 {
		t.Fatalf("duration missing: %v", ok)
	}

	failed := spanAttrs(spans[1])
	if failed[telemetry.AttrToolSuccess].AsBool() {
		t.Fatalf("failing call should record failure: %v", failed)
	}
	if failed[telemetry.AttrToolCallID].AsString() != "call-8" {
		t.Fatalf("call ID lost on failure: %v", failed)
	}
}
