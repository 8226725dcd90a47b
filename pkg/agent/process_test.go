package agent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/llm"
	"github.com/openserv-labs/agent-go/pkg/telemetry"
)

func echoCall(id, input string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionCall{
			Name:      "echo",
			Arguments: `{"input": "` + input + `"}`,
		},
	}
}

func seed() ProcessParams {
	return ProcessParams{Messages: []llm.Message{
		llm.SystemMessage("system"),
		llm.UserMessage("do the thing"),
	}}
}

func TestProcessWithoutProviderFails(t *testing.T) {
	a, rec := newTestAgent(t)

	_, err := a.Process(context.Background(), seed())
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Code != errors.CodeConfigError {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(rec.byTag("process")) != 1 {
		t.Fatal("missing credential should notify the handler")
	}
}

func TestProcessReturnsAfterOneCallWithoutTools(t *testing.T) {
	provider := llm.NewScriptedProvider(llm.TextResponse("done"))
	a, _ := newTestAgent(t, WithLLM(provider), WithCapabilities(echoCap(t)))

	resp, err := a.Process(context.Background(), seed())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if resp.Content != "done" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if provider.CallCount() != 1 {
		t.Fatalf("expected exactly one collaborator call, got %d", provider.CallCount())
	}
}

func TestProcessOmitsToolsWhenRegistryEmpty(t *testing.T) {
	provider := llm.NewScriptedProvider(llm.TextResponse("done"))
	a, _ := newTestAgent(t, WithLLM(provider))

	if _, err := a.Process(context.Background(), seed()); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if got := provider.Requests()[0].Tools; got != nil {
		t.Fatalf("empty registry should not send tool descriptors: %v", got)
	}
}

func TestProcessToolRoundsGrowHistory(t *testing.T) {
	provider := llm.NewScriptedProvider(
		llm.ToolCallResponse(echoCall("call-1", "one")),
		llm.ToolCallResponse(echoCall("call-2", "two")),
		llm.TextResponse("final"),
	)
	a, _ := newTestAgent(t, WithLLM(provider), WithCapabilities(echoCap(t)))

	resp, err := a.Process(context.Background(), seed())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if resp.Content != "final" {
		t.Fatalf("unexpected final content: %q", resp.Content)
	}
	if provider.CallCount() != 3 {
		t.Fatalf("expected N+1 = 3 collaborator calls, got %d", provider.CallCount())
	}

	// Each tool round appends one assistant turn plus one tool result.
	requests := provider.Requests()
	if len(requests[1].Messages) != 4 {
		t.Fatalf("round 2 should see 4 messages, got %d", len(requests[1].Messages))
	}
	if len(requests[2].Messages) != 6 {
		t.Fatalf("round 3 should see 6 messages, got %d", len(requests[2].Messages))
	}

	toolMsg := requests[1].Messages[3]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "call-1" || toolMsg.Content != "one" {
		t.Fatalf("tool result not correlated: %+v", toolMsg)
	}
	if requests[1].Messages[2].Role != llm.RoleAssistant {
		t.Fatalf("assistant turn should precede tool results: %+v", requests[1].Messages[2])
	}
}

func TestProcessNeverExceedsIterationBudget(t *testing.T) {
	responses := make([]*llm.ChatResponse, 0, 12)
	for i := 0; i < 12; i++ {
		responses = append(responses, llm.ToolCallResponse(echoCall("c", "x")))
	}
	provider := llm.NewScriptedProvider(responses...)
	a, rec := newTestAgent(t, WithLLM(provider), WithCapabilities(echoCap(t)))

	_, err := a.Process(context.Background(), seed())
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Code != errors.CodeMaxIterations {
		t.Fatalf("expected max-iterations error, got %v", err)
	}
	if provider.CallCount() != 10 {
		t.Fatalf("budget is 10 collaborator calls, made %d", provider.CallCount())
	}
	if len(rec.byTag("process")) != 1 {
		t.Fatalf("budget exhaustion should notify once: %+v", rec.all())
	}
}

func TestProcessContainsFailingSiblingCall(t *testing.T) {
	provider := llm.NewScriptedProvider(
		llm.ToolCallResponse(
			echoCall("ok-1", "alpha"),
			llm.ToolCall{
				ID:       "bad-2",
				Type:     llm.ToolTypeFunction,
				Function: llm.FunctionCall{Name: "boom", Arguments: `{}`},
			},
			echoCall("ok-3", "gamma"),
		),
		llm.TextResponse("final"),
	)
	a, rec := newTestAgent(t,
		WithLLM(provider),
		WithCapabilities(echoCap(t), failingCap(t, "boom")),
	)

	if _, err := a.Process(context.Background(), seed()); err != nil {
		t.Fatalf("one failing sibling must not abort the run: %v", err)
	}

	second := provider.Requests()[1].Messages
	toolResults := second[len(second)-3:]
	if len(toolResults) != 3 {
		t.Fatalf("K=3 calls should yield 3 tool results, got %d", len(toolResults))
	}
	// Results stay in call order regardless of completion order.
	wantIDs := []string{"ok-1", "bad-2", "ok-3"}
	for i, msg := range toolResults {
		if msg.ToolCallID != wantIDs[i] {
			t.Fatalf("result order lost: got %q at %d, want %q", msg.ToolCallID, i, wantIDs[i])
		}
	}

	var failure map[string]string
	if err := json.Unmarshal([]byte(toolResults[1].Content), &failure); err != nil {
		t.Fatalf("failing call should carry an error payload: %q", toolResults[1].Content)
	}
	if !strings.Contains(failure["error"], "boom") {
		t.Fatalf("error payload should carry the message: %v", failure)
	}

	if len(rec.byTag("tool_execution")) != 1 {
		t.Fatalf("per-call failure should notify once with tool_execution: %+v", rec.all())
	}
}

func TestProcessBadJSONArgumentsFailsOnlyThatCall(t *testing.T) {
	provider := llm.NewScriptedProvider(
		llm.ToolCallResponse(llm.ToolCall{
			ID:       "bad",
			Type:     llm.ToolTypeFunction,
			Function: llm.FunctionCall{Name: "echo", Arguments: `{not json`},
		}),
		llm.TextResponse("final"),
	)
	a, rec := newTestAgent(t, WithLLM(provider), WithCapabilities(echoCap(t)))

	if _, err := a.Process(context.Background(), seed()); err != nil {
		t.Fatalf("parse failure should be contained: %v", err)
	}
	second := provider.Requests()[1].Messages
	content := second[len(second)-1].Content
	if !strings.Contains(content, "error") {
		t.Fatalf("parse failure should become an error payload: %q", content)
	}
	if len(rec.byTag("tool_execution")) != 1 {
		t.Fatalf("handler notifications: %+v", rec.all())
	}
}

func TestProcessRecordsUsageOnCompletionSpans(t *testing.T) {
	recorder := recordSpans(t)
	provider := llm.NewScriptedProvider(llm.TextResponse("done"))
	a, _ := newTestAgent(t, WithLLM(provider), WithModel("gpt-4o"))

	if _, err := a.Process(context.Background(), seed()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	spans := spanNamed(recorder.Ended(), "Agent.LLMCall")
	if len(spans) != 1 {
		t.Fatalf("expected one completion span, got %d", len(spans))
	}
	attrs := spanAttrs(spans[0])
	if attrs[telemetry.AttrLLMTokensInput].AsInt64() != 10 {
		t.Fatalf("input token usage missing: %v", attrs)
	}
	if attrs[telemetry.AttrLLMTokensTotal].AsInt64() != 20 {
		t.Fatalf("total token usage missing: %v", attrs)
	}
	if attrs[telemetry.AttrLLMModel].AsString() == "" {
		t.Fatalf("model attribute missing: %v", attrs)
	}
}

func TestProcessSurfacesProviderFailure(t *testing.T) {
	provider := &llm.MockProvider{Err: stderrors.New("upstream down")}
	a, rec := newTestAgent(t, WithLLM(provider))

	_, err := a.Process(context.Background(), seed())
	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Code != errors.CodeLLMError {
		t.Fatalf("expected llm error, got %v", err)
	}
	if len(rec.byTag("process")) != 1 {
		t.Fatal("provider failure should notify the handler once")
	}
}
