// SPDX-License-Identifier: Apache-2.0

// Package action models the inbound platform events an agent can receive:
// a task assignment or a chat turn, each with workspace, integration and
// memory context. Actions are built fresh from raw payloads via Parse and
// never mutated afterwards.
package action

import (
	"time"
)

// Type discriminates the action union.
type Type string

const (
	// TypeDoTask asks the agent to work on an assigned task.
	TypeDoTask Type = "do-task"

	// TypeRespondChatMessage asks the agent to answer a chat message.
	TypeRespondChatMessage Type = "respond-chat-message"
)

// Types lists the valid discriminator values.
func Types() []Type {
	return []Type{TypeDoTask, TypeRespondChatMessage}
}

// AgentKind identifies how the acting agent was built.
type AgentKind string

const (
	KindExternal AgentKind = "external"
	KindEliza    AgentKind = "eliza"
	KindOpenServ AgentKind = "openserv"
)

func (k AgentKind) valid() bool {
	switch k {
	case KindExternal, KindEliza, KindOpenServ:
		return true
	}
	return false
}

// AgentIdentity describes the agent the action is addressed to.
// SystemPrompt is present exactly when IsBuiltByAgentBuilder is set.
type AgentIdentity struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Kind                  AgentKind `json:"kind"`
	IsBuiltByAgentBuilder bool      `json:"isBuiltByAgentBuilder"`
	SystemPrompt          string    `json:"systemPrompt,omitempty"`
}

// TaskStatus is the platform-authoritative task state. The SDK only reads
// and writes it through pass-through calls; there is no local transition
// logic.
type TaskStatus string

const (
	StatusToDo                    TaskStatus = "to-do"
	StatusInProgress              TaskStatus = "in-progress"
	StatusHumanAssistanceRequired TaskStatus = "human-assistance-required"
	StatusError                   TaskStatus = "error"
	StatusDone                    TaskStatus = "done"
	StatusCancelled               TaskStatus = "cancelled"
)

func (s TaskStatus) valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusHumanAssistanceRequired,
		StatusError, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Attachment is a file attached to a task.
type Attachment struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	FullURL string `json:"fullUrl,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// DependencyTask is an upstream task this task depends on.
type DependencyTask struct {
	ID          int64        `json:"id"`
	Description string       `json:"description"`
	Output      string       `json:"output,omitempty"`
	Status      TaskStatus   `json:"status"`
	Attachments []Attachment `json:"attachments"`
}

// AssistanceRequestType classifies a human-assistance request.
type AssistanceRequestType string

const (
	AssistanceText       AssistanceRequestType = "text"
	AssistancePlanReview AssistanceRequestType = "project-manager-plan-review"
)

// AssistanceStatus tracks whether a human answered yet.
type AssistanceStatus string

const (
	AssistancePending   AssistanceStatus = "pending"
	AssistanceResponded AssistanceStatus = "responded"
)

// AssistanceRequest is a pending or answered request for human input.
type AssistanceRequest struct {
	ID            int64                 `json:"id"`
	Type          AssistanceRequestType `json:"type"`
	Question      string                `json:"question"`
	Status        AssistanceStatus      `json:"status"`
	AgentDump     map[string]any        `json:"agentDump,omitempty"`
	HumanResponse string                `json:"humanResponse,omitempty"`
}

// TaskContext carries the assigned task and its surroundings.
type TaskContext struct {
	ID                      int64               `json:"id"`
	Description             string              `json:"description"`
	Body                    string              `json:"body,omitempty"`
	ExpectedOutput          string              `json:"expectedOutput,omitempty"`
	Input                   string              `json:"input,omitempty"`
	Dependencies            []DependencyTask    `json:"dependencies"`
	HumanAssistanceRequests []AssistanceRequest `json:"humanAssistanceRequests"`
}

// WorkspaceContext identifies the workspace the action happens in.
type WorkspaceContext struct {
	ID   int64  `json:"id"`
	Goal string `json:"goal"`
}

// IntegrationSummary is the OpenAPI-derived description of an integration.
type IntegrationSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Integration is a third-party connection available to the agent.
type Integration struct {
	ID                string             `json:"id"`
	ConnectionID      string             `json:"connection_id"`
	ProviderConfigKey string             `json:"provider_config_key"`
	Provider          string             `json:"provider"`
	Created           string             `json:"created"`
	Metadata          map[string]any     `json:"metadata,omitempty"`
	Scopes            []string           `json:"scopes,omitempty"`
	OpenAPI           IntegrationSummary `json:"openAPI"`
}

// Memory is a workspace memory entry.
type Memory struct {
	ID        int64     `json:"id"`
	Memory    string    `json:"memory"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatAuthor identifies who wrote a chat turn.
type ChatAuthor string

const (
	AuthorUser  ChatAuthor = "user"
	AuthorAgent ChatAuthor = "agent"
)

// ChatTurn is one prior message of the chat the agent must answer.
type ChatTurn struct {
	ID        int64      `json:"id"`
	Author    ChatAuthor `json:"author"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Action is the validated tagged union of inbound platform events.
// Task is set on do-task actions, Messages on respond-chat-message ones.
type Action struct {
	Type         Type             `json:"type"`
	Me           AgentIdentity    `json:"me"`
	Task         *TaskContext     `json:"task,omitempty"`
	Messages     []ChatTurn       `json:"messages,omitempty"`
	Workspace    WorkspaceContext `json:"workspace"`
	Integrations []Integration    `json:"integrations"`
	Memories     []Memory         `json:"memories"`
}
