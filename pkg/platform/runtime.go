// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"fmt"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/llm"
)

// DefaultRuntimeURL is the production runtime endpoint the default task
// and chat handlers forward to.
const DefaultRuntimeURL = "https://agents.openserv.ai"

// RuntimeRequest is the payload forwarded to the runtime collaborator:
// the agent's tool descriptors, the assembled message history and the
// originating action.
type RuntimeRequest struct {
	Tools    []llm.Tool     `json:"tools,omitempty"`
	Messages []llm.Message  `json:"messages"`
	Action   *action.Action `json:"action"`
}

// RuntimeClient forwards task and chat work to the runtime service for
// non-autonomous processing.
type RuntimeClient struct {
	client *Client
}

// NewRuntimeClient creates a runtime collaborator client.
func NewRuntimeClient(baseURL, apiKey string, opts ...ClientOption) *RuntimeClient {
	if baseURL == "" {
		baseURL = DefaultRuntimeURL
	}
	return &RuntimeClient{client: NewClient(baseURL, apiKey, opts...)}
}

// Execute forwards a do-task action to the runtime's task endpoint.
func (r *RuntimeClient) Execute(ctx context.Context, req RuntimeRequest) error {
	if err := r.client.Post(ctx, "/execute", req, nil); err != nil {
		return fmt.Errorf("runtime execute: %w", err)
	}
	return nil
}

// Chat forwards a respond-chat-message action to the runtime's chat
// endpoint.
func (r *RuntimeClient) Chat(ctx context.Context, req RuntimeRequest) error {
	if err := r.client.Post(ctx, "/chat", req, nil); err != nil {
		return fmt.Errorf("runtime chat: %w", err)
	}
	return nil
}
