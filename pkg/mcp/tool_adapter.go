// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openserv-labs/agent-go/pkg/capability"
	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/schema"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// Adapt wraps an MCP tool definition as a registrable capability. The
// capability's schema is the tool's input schema, so arguments are
// validated before the server ever sees them.
func Adapt(tool mcp.Tool, caller ToolCaller) (*capability.Capability, error) {
	if tool.Name == "" {
		return nil, errors.New(errors.CodeInvalidInput, "mcp tool name is required", nil)
	}
	if caller == nil {
		return nil, errors.Newf(errors.CodeInvalidInput, "mcp tool %q needs a caller", tool.Name)
	}

	sch, err := toolSchema(tool)
	if err != nil {
		return nil, err
	}

	return capability.New(tool.Name, tool.Description, sch,
		func(ctx context.Context, inv capability.Invocation) (string, error) {
			result, err := caller.CallTool(ctx, tool.Name, inv.Args)
			if err != nil {
				return "", err
			}
			return resultText(tool.Name, result)
		})
}

// Capabilities lists the tools on the server and adapts each one.
func Capabilities(ctx context.Context, client *Client) ([]*capability.Capability, error) {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	caps := make([]*capability.Capability, 0, len(tools))
	for _, tool := range tools {
		c, err := Adapt(tool, client)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// toolSchema converts the MCP input schema into a validator. Tools that
// declare no schema accept any object.
func toolSchema(tool mcp.Tool) (*schema.Schema, error) {
	raw := tool.RawInputSchema
	if raw == nil {
		encoded, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, errors.Newf(errors.CodeInvalidInput, "mcp tool %q has an unusable schema", tool.Name)
		}
		raw = encoded
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "mcp tool schema is not valid JSON", err).
			WithContext("tool", tool.Name)
	}
	if doc["type"] == nil || doc["type"] == "" {
		doc["type"] = "object"
	}
	return schema.New(doc)
}

func resultText(name string, result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.Newf(errors.CodeToolFailure, "mcp tool %q returned no result", name)
	}
	if result.IsError {
		return "", errors.Newf(errors.CodeToolFailure, "mcp tool %q failed: %s", name, textContent(result.Content))
	}
	if result.StructuredContent != nil {
		encoded, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", errors.New(errors.CodeToolFailure, "mcp structured content is not serializable", err).
				WithContext("tool", name)
		}
		return string(encoded), nil
	}
	return textContent(result.Content), nil
}

func textContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
