// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/llm"
	"github.com/openserv-labs/agent-go/pkg/platform"
	"github.com/openserv-labs/agent-go/pkg/telemetry"
)

// HandleRootRoute validates an inbound action payload and routes it to
// the configured handlers. The route never surfaces a failure to the
// transport: validation errors are observed only through the error
// handler with context "handle_root_route", and the handlers run
// fire-and-forget so the platform gets its acknowledgment immediately.
func (a *Agent) HandleRootRoute(ctx context.Context, payload []byte) {
	act, err := action.Parse(payload)
	if err != nil {
		a.notify(ctx, err, "handle_root_route")
		return
	}
	a.metrics.RecordAction(ctx, string(act.Type))

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		// Detached from the request context: the HTTP response has
		// already been written when this work runs.
		a.runAction(context.Background(), act)
	}()
}

func (a *Agent) runAction(ctx context.Context, act *action.Action) {
	var taskID int64
	if act.Task != nil {
		taskID = act.Task.ID
	}
	attrs := append(
		telemetry.TaskAttributes(act.Workspace.ID, taskID, ""),
		attribute.String(telemetry.AttrActionType, string(act.Type)),
	)
	ctx, span := a.tracer.Start(ctx, "Agent.Action", trace.WithAttributes(attrs...))
	defer span.End()

	switch act.Type {
	case action.TypeDoTask:
		if err := a.doTask(ctx, act); err != nil {
			a.notify(ctx, err, "do_task")
		}
	case action.TypeRespondChatMessage:
		if err := a.respondToChat(ctx, act); err != nil {
			a.notify(ctx, err, "respond_to_chat")
		}
	}
}

// WaitForActions blocks until all fire-and-forget action handlers have
// settled. Stop calls it; tests use it to assert on handler side effects.
func (a *Agent) WaitForActions() {
	a.background.Wait()
}

// forwardTask is the default do-task behavior: assemble the seed messages
// and hand the work to the runtime collaborator's task endpoint.
func (a *Agent) forwardTask(ctx context.Context, act *action.Action) error {
	messages := []llm.Message{llm.SystemMessage(a.systemPromptFor(act))}
	if act.Task != nil && act.Task.Description != "" {
		messages = append(messages, llm.UserMessage(act.Task.Description))
	}
	return a.runtime.Execute(ctx, platform.RuntimeRequest{
		Tools:    a.registry.Definitions(),
		Messages: messages,
		Action:   act,
	})
}

// forwardChat is the default respond-chat-message behavior: replay the
// prior turns mapped user/assistant by author and forward to the runtime
// collaborator's chat endpoint.
func (a *Agent) forwardChat(ctx context.Context, act *action.Action) error {
	messages := []llm.Message{llm.SystemMessage(a.systemPromptFor(act))}
	for _, turn := range act.Messages {
		if turn.Author == action.AuthorUser {
			messages = append(messages, llm.UserMessage(turn.Message))
		} else {
			messages = append(messages, llm.AssistantMessage(turn.Message))
		}
	}
	return a.runtime.Chat(ctx, platform.RuntimeRequest{
		Tools:    a.registry.Definitions(),
		Messages: messages,
		Action:   act,
	})
}
