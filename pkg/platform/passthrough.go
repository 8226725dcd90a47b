// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/errors"
)

// Pass-through methods mapping 1:1 to platform endpoints under the
// workspace/task namespace. The wire shapes are the platform's; the SDK
// forwards them without interpretation.

// Task is the platform's task record as returned by task endpoints.
type Task struct {
	ID          int64             `json:"id"`
	Description string            `json:"description"`
	Status      action.TaskStatus `json:"status"`
	Output      string            `json:"output,omitempty"`
}

// CreateTaskParams describes a task to create in a workspace.
type CreateTaskParams struct {
	AssigneeID     int64   `json:"assignee"`
	Description    string  `json:"description"`
	Body           string  `json:"body"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expectedOutput"`
	Dependencies   []int64 `json:"dependencies"`
}

// CreateTask creates a task in the workspace.
func (c *Client) CreateTask(ctx context.Context, workspaceID int64, params CreateTaskParams) (*Task, error) {
	var task Task
	path := fmt.Sprintf("/workspaces/%d/tasks", workspaceID)
	if err := c.Post(ctx, path, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTaskDetail fetches the full task record.
func (c *Client) GetTaskDetail(ctx context.Context, workspaceID, taskID int64) (*Task, error) {
	var task Task
	path := fmt.Sprintf("/workspaces/%d/tasks/%d/detail", workspaceID, taskID)
	if err := c.Get(ctx, path, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus sets the platform-authoritative task status.
func (c *Client) UpdateTaskStatus(ctx context.Context, workspaceID, taskID int64, status action.TaskStatus) error {
	path := fmt.Sprintf("/workspaces/%d/tasks/%d/status", workspaceID, taskID)
	return c.Put(ctx, path, map[string]any{"status": status}, nil)
}

// CompleteTask marks the task done with its final output.
func (c *Client) CompleteTask(ctx context.Context, workspaceID, taskID int64, output string) error {
	path := fmt.Sprintf("/workspaces/%d/tasks/%d/complete", workspaceID, taskID)
	return c.Put(ctx, path, map[string]any{"output": output}, nil)
}

// MarkTaskAsErrored reports a terminal task failure.
func (c *Client) MarkTaskAsErrored(ctx context.Context, workspaceID, taskID int64, reason string) error {
	path := fmt.Sprintf("/workspaces/%d/tasks/%d/error", workspaceID, taskID)
	return c.Post(ctx, path, map[string]any{"error": reason}, nil)
}

// LogSeverity classifies task log entries.
type LogSeverity string

const (
	LogInfo    LogSeverity = "info"
	LogWarning LogSeverity = "warning"
	LogError   LogSeverity = "error"
)

// AddLogToTask appends a log entry to the task timeline.
func (c *Client) AddLogToTask(ctx context.Context, workspaceID, taskID int64, severity LogSeverity, body string) error {
	path := fmt.Sprintf("/workspaces/%d/tasks/%d/log", workspaceID, taskID)
	return c.Post(ctx, path, map[string]any{
		"severity": severity,
		"type":     "text",
		"body":     body,
	}, nil)
}

// RequestHumanAssistance asks a human for input on a task.
func (c *Client) RequestHumanAssistance(ctx context.Context, workspaceID, taskID int64, assistanceType action.AssistanceRequestType, question string, agentDump map[string]any) error {
	path := fmt.Sprintf("/workspaces/%d/tasks/%d/human-assistance", workspaceID, taskID)
	return c.Post(ctx, path, map[string]any{
		"type":      assistanceType,
		"question":  question,
		"agentDump": agentDump,
	}, nil)
}

// SendChatMessage posts a message to the workspace chat on behalf of the
// agent.
func (c *Client) SendChatMessage(ctx context.Context, workspaceID, agentID int64, message string) error {
	path := fmt.Sprintf("/workspaces/%d/agent-chat/%d/message", workspaceID, agentID)
	return c.Post(ctx, path, map[string]any{"message": message}, nil)
}

// AgentSummary identifies another agent in the workspace.
type AgentSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GetAgents lists the agents of a workspace.
func (c *Client) GetAgents(ctx context.Context, workspaceID int64) ([]AgentSummary, error) {
	var agents []AgentSummary
	path := fmt.Sprintf("/workspaces/%d/agents", workspaceID)
	if err := c.Get(ctx, path, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// CreateMemory stores a memory entry for the agent in the workspace.
func (c *Client) CreateMemory(ctx context.Context, workspaceID int64, memory string) error {
	path := fmt.Sprintf("/workspaces/%d/memories", workspaceID)
	return c.Post(ctx, path, map[string]any{"memory": memory}, nil)
}

// IntegrationCall proxies a request through a workspace integration.
type IntegrationCall struct {
	Endpoint string         `json:"endpoint"`
	Method   string         `json:"method"`
	Data     map[string]any `json:"data,omitempty"`
}

// CallIntegration proxies a call through the named integration connection
// and returns the raw response payload.
func (c *Client) CallIntegration(ctx context.Context, workspaceID int64, connectionID string, call IntegrationCall) (json.RawMessage, error) {
	var out json.RawMessage
	path := fmt.Sprintf("/workspaces/%d/integration/%s/proxy", workspaceID, connectionID)
	if err := c.Post(ctx, path, call, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// File is a workspace file record.
type File struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	FullURL string `json:"fullUrl,omitempty"`
}

// GetFiles lists the files of a workspace.
func (c *Client) GetFiles(ctx context.Context, workspaceID int64) ([]File, error) {
	var files []File
	path := fmt.Sprintf("/workspaces/%d/files", workspaceID)
	if err := c.Get(ctx, path, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// UploadFileParams describes a file upload into a workspace.
type UploadFileParams struct {
	Path           string
	Content        []byte
	TaskIDs        []int64
	SkipSummarizer bool
}

// UploadFile uploads a file as multipart form data.
func (c *Client) UploadFile(ctx context.Context, workspaceID int64, params UploadFileParams) (*File, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", params.Path)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "build multipart body", err)
	}
	if _, err := part.Write(params.Content); err != nil {
		return nil, errors.New(errors.CodeInternal, "build multipart body", err)
	}
	_ = form.WriteField("path", params.Path)
	_ = form.WriteField("skipSummarizer", strconv.FormatBool(params.SkipSummarizer))
	if len(params.TaskIDs) > 0 {
		ids := make([]string, 0, len(params.TaskIDs))
		for _, id := range params.TaskIDs {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		_ = form.WriteField("taskIds", strings.Join(ids, ","))
	}
	if err := form.Close(); err != nil {
		return nil, errors.New(errors.CodeInternal, "build multipart body", err)
	}

	url := fmt.Sprintf("%s/workspaces/%d/file", c.baseURL, workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "build request", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodePlatformError, "upload file failed", err).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.New(errors.CodePlatformError, "upload file failed",
			&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}).
			WithContext("status", resp.StatusCode)
	}

	var file File
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil && err != io.EOF {
		return nil, errors.New(errors.CodePlatformError, "decode response body", err)
	}
	return &file, nil
}
