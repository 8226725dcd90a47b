// SPDX-License-Identifier: Apache-2.0

// Package capability defines the executable units an agent exposes: named,
// schema-validated functions, and the ordered registry that holds them.
package capability

import (
	"context"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/llm"
	"github.com/openserv-labs/agent-go/pkg/platform"
	"github.com/openserv-labs/agent-go/pkg/schema"
)

// Invocation carries the context of a single capability execution. Args is
// always the product of successful schema validation; an execute function
// never sees unvalidated input. Platform exposes the agent's pass-through
// operations so a capability can report progress or send chat messages.
type Invocation struct {
	Args     map[string]any
	Action   *action.Action
	Messages []llm.Message
	Platform *platform.Client
}

// ExecuteFunc is the behavior of a capability. It receives validated
// arguments and returns the tool-result string handed back to the caller
// or the model.
type ExecuteFunc func(ctx context.Context, inv Invocation) (string, error)

// Capability is an immutable named unit: identifier, description, input
// shape and execution function.
type Capability struct {
	name        string
	description string
	inputSchema *schema.Schema
	execute     ExecuteFunc
}

// New creates a Capability. The name must be non-empty and unique within
// the registry it is added to; schema and execute are required.
func New(name, description string, inputSchema *schema.Schema, execute ExecuteFunc) (*Capability, error) {
	if name == "" {
		return nil, errors.New(errors.CodeInvalidInput, "capability name is required", nil)
	}
	if inputSchema == nil {
		return nil, errors.Newf(errors.CodeInvalidInput, "capability %q needs an input schema", name)
	}
	if execute == nil {
		return nil, errors.Newf(errors.CodeInvalidInput, "capability %q needs an execute function", name)
	}
	return &Capability{
		name:        name,
		description: description,
		inputSchema: inputSchema,
		execute:     execute,
	}, nil
}

// MustNew creates a Capability and panics on a construction error.
// Intended for static tool tables assembled at startup.
func MustNew(name, description string, inputSchema *schema.Schema, execute ExecuteFunc) *Capability {
	c, err := New(name, description, inputSchema, execute)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the unique capability name.
func (c *Capability) Name() string { return c.name }

// Description returns the human-readable description shown to the model.
func (c *Capability) Description() string { return c.description }

// Schema returns the input shape validator.
func (c *Capability) Schema() *schema.Schema { return c.inputSchema }

// Execute runs the capability. Callers validate args through Schema first;
// Execute itself does not re-validate.
func (c *Capability) Execute(ctx context.Context, inv Invocation) (string, error) {
	return c.execute(ctx, inv)
}

// Definition returns the LLM function descriptor for this capability.
func (c *Capability) Definition() llm.Tool {
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        c.name,
			Description: c.description,
			Parameters:  c.inputSchema.Definition(),
		},
	}
}
