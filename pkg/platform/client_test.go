package platform

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/resilience"
)

func fastClient(url string) *Client {
	return NewClient(url, "test-key", WithRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}))
}

func TestClientSendsAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-openserv-key")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var out map[string]any
	if err := fastClient(server.URL).Get(context.Background(), "/ping", &out); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header not sent, got %q", gotKey)
	}
}

func TestClientRetriesBadGateway(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if err := fastClient(server.URL).Post(context.Background(), "/workspaces/1/tasks", map[string]any{}, nil); err != nil {
		t.Fatalf("expected retry to recover from 502: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer server.Close()

	err := fastClient(server.URL).Post(context.Background(), "/x", map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("400 should not retry, got %d attempts", calls.Load())
	}

	var ae *errors.AgentError
	if !stderrors.As(err, &ae) || ae.Code != errors.CodePlatformError {
		t.Fatalf("expected platform error, got %v", err)
	}
	var se *StatusError
	if !stderrors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status error in chain, got %v", err)
	}
}

func TestPassthroughPaths(t *testing.T) {
	type hit struct{ method, path string }
	var hits []hit
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, hit{r.Method, r.URL.Path})
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := fastClient(server.URL)
	ctx := context.Background()

	if _, err := c.CreateTask(ctx, 7, CreateTaskParams{Description: "d"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := c.UpdateTaskStatus(ctx, 7, 42, action.StatusInProgress); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := c.CompleteTask(ctx, 7, 42, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := c.AddLogToTask(ctx, 7, 42, LogInfo, "working"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := c.SendChatMessage(ctx, 7, 1, "hi"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	want := []hit{
		{"POST", "/workspaces/7/tasks"},
		{"PUT", "/workspaces/7/tasks/42/status"},
		{"PUT", "/workspaces/7/tasks/42/complete"},
		{"POST", "/workspaces/7/tasks/42/log"},
		{"POST", "/workspaces/7/agent-chat/1/message"},
	}
	if len(hits) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(hits))
	}
	for i, w := range want {
		if hits[i] != w {
			t.Errorf("call %d: got %+v, want %+v", i, hits[i], w)
		}
	}
}

func TestRuntimeClientPaths(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	rt := NewRuntimeClient(server.URL, "key", WithRetry(resilience.RetryConfig{MaxAttempts: 1}))
	req := RuntimeRequest{Action: &action.Action{Type: action.TypeDoTask}}
	if err := rt.Execute(context.Background(), req); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := rt.Chat(context.Background(), req); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/execute" || paths[1] != "/chat" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func TestUploadFileMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not multipart: %v", err)
		}
		if r.FormValue("path") != "report.md" {
			t.Errorf("path field missing: %q", r.FormValue("path"))
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part missing: %v", err)
		} else {
			file.Close()
		}
		w.Write([]byte(`{"id":9,"path":"report.md"}`))
	}))
	defer server.Close()

	file, err := fastClient(server.URL).UploadFile(context.Background(), 7, UploadFileParams{
		Path:    "report.md",
		Content: []byte("# hello"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if file.ID != 9 {
		t.Fatalf("response not decoded: %+v", file)
	}
}
