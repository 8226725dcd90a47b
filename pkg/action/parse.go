// SPDX-License-Identifier: Apache-2.0

package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openserv-labs/agent-go/pkg/schema"
)

// Parse decodes and validates a raw action payload. Validation failures
// are reported as a *schema.ValidationError with path-bearing diagnostics;
// an unknown discriminator enumerates the valid tags.
func Parse(raw []byte) (*Action, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("action payload is not a JSON object: %w", err)
	}

	var fields []schema.FieldError

	typeRaw, ok := probe["type"]
	if !ok {
		return nil, schema.NewValidationError(schema.FieldError{
			Path:     "type",
			Expected: "present",
			Actual:   "missing",
			Message:  "discriminator is required",
		})
	}

	var typ Type
	if err := json.Unmarshal(typeRaw, &typ); err != nil || !validType(typ) {
		return nil, schema.NewValidationError(schema.FieldError{
			Path:     "type",
			Expected: enumerateTypes(),
			Actual:   strings.Trim(string(typeRaw), `"`),
			Message:  "unknown action type",
		})
	}

	var act Action
	if err := json.Unmarshal(raw, &act); err != nil {
		return nil, fmt.Errorf("decode %s action: %w", typ, err)
	}

	fields = append(fields, requireKeys(probe, "me", "workspace")...)
	fields = append(fields, act.Me.validate()...)

	switch typ {
	case TypeDoTask:
		if _, ok := probe["task"]; !ok {
			fields = append(fields, missingField("task"))
		} else if act.Task != nil {
			fields = append(fields, act.Task.validate()...)
		}
	case TypeRespondChatMessage:
		if _, ok := probe["messages"]; !ok {
			fields = append(fields, missingField("messages"))
		}
		for i, turn := range act.Messages {
			if turn.Author != AuthorUser && turn.Author != AuthorAgent {
				fields = append(fields, schema.FieldError{
					Path:     fmt.Sprintf("messages.%d.author", i),
					Expected: `one of "user", "agent"`,
					Actual:   string(turn.Author),
					Message:  "unknown chat author",
				})
			}
		}
	}

	if len(fields) > 0 {
		return nil, schema.NewValidationError(fields...)
	}
	return &act, nil
}

func (m AgentIdentity) validate() []schema.FieldError {
	var fields []schema.FieldError
	if !m.Kind.valid() {
		fields = append(fields, schema.FieldError{
			Path:     "me.kind",
			Expected: `one of "external", "eliza", "openserv"`,
			Actual:   string(m.Kind),
			Message:  "unknown agent kind",
		})
	}
	// systemPrompt presence is tied to the builder flag, it is not an
	// independently optional field.
	if m.IsBuiltByAgentBuilder && m.SystemPrompt == "" {
		fields = append(fields, schema.FieldError{
			Path:     "me.systemPrompt",
			Expected: "present",
			Actual:   "missing",
			Message:  "agent-builder agents carry a system prompt",
		})
	}
	if !m.IsBuiltByAgentBuilder && m.SystemPrompt != "" {
		fields = append(fields, schema.FieldError{
			Path:     "me.systemPrompt",
			Expected: "absent",
			Actual:   "present",
			Message:  "only agent-builder agents carry a system prompt",
		})
	}
	return fields
}

func (t TaskContext) validate() []schema.FieldError {
	var fields []schema.FieldError
	for i, dep := range t.Dependencies {
		if !dep.Status.valid() {
			fields = append(fields, schema.FieldError{
				Path:     fmt.Sprintf("task.dependencies.%d.status", i),
				Expected: "a task status",
				Actual:   string(dep.Status),
				Message:  "unknown task status",
			})
		}
	}
	for i, req := range t.HumanAssistanceRequests {
		if req.Type != AssistanceText && req.Type != AssistancePlanReview {
			fields = append(fields, schema.FieldError{
				Path:     fmt.Sprintf("task.humanAssistanceRequests.%d.type", i),
				Expected: `one of "text", "project-manager-plan-review"`,
				Actual:   string(req.Type),
				Message:  "unknown assistance request type",
			})
		}
	}
	return fields
}

func validType(t Type) bool {
	for _, candidate := range Types() {
		if t == candidate {
			return true
		}
	}
	return false
}

func enumerateTypes() string {
	names := make([]string, 0, len(Types()))
	for _, t := range Types() {
		names = append(names, fmt.Sprintf("%q", string(t)))
	}
	return "one of " + strings.Join(names, ", ")
}

func requireKeys(probe map[string]json.RawMessage, keys ...string) []schema.FieldError {
	var fields []schema.FieldError
	for _, key := range keys {
		if _, ok := probe[key]; !ok {
			fields = append(fields, missingField(key))
		}
	}
	return fields
}

func missingField(path string) schema.FieldError {
	return schema.FieldError{
		Path:     path,
		Expected: "present",
		Actual:   "missing",
		Message:  "required field is missing",
	}
}
