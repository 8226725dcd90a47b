package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/openserv-labs/agent-go/pkg/capability"
	"github.com/openserv-labs/agent-go/pkg/config"
	"github.com/openserv-labs/agent-go/pkg/schema"
)

// recorder captures error-handler notifications for assertions.
type recorder struct {
	mu     sync.Mutex
	events []recordedError
}

type recordedError struct {
	err error
	tag string
}

func (r *recorder) handle(err error, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedError{err: err, tag: tag})
}

func (r *recorder) all() []recordedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedError(nil), r.events...)
}

func (r *recorder) byTag(tag string) []recordedError {
	var out []recordedError
	for _, e := range r.all() {
		if e.tag == tag {
			out = append(out, e)
		}
	}
	return out
}

func newTestAgent(t *testing.T, opts ...Option) (*Agent, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []Option{
		WithConfig(&config.Config{}),
		WithAPIKey("test-key"),
		WithSystemPrompt("You are a test agent."),
		WithErrorHandler(rec.handle),
	}
	a, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("agent construction failed: %v", err)
	}
	return a, rec
}

func echoCap(t *testing.T) *capability.Capability {
	t.Helper()
	return capability.MustNew("echo", "echoes the input back",
		schema.Object(map[string]any{
			"input": map[string]any{"type": "string"},
		}, "input"),
		func(ctx context.Context, inv capability.Invocation) (string, error) {
			return inv.Args["input"].(string), nil
		})
}

func failingCap(t *testing.T, name string) *capability.Capability {
	t.Helper()
	return capability.MustNew(name, "always fails",
		schema.Object(map[string]any{}),
		func(ctx context.Context, inv capability.Invocation) (string, error) {
			return "", fmt.Errorf("%s blew up", name)
		})
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(WithConfig(&config.Config{})); err == nil {
		t.Fatal("missing platform API key should fail construction")
	}
}

func TestNewReadsKeyFromConfig(t *testing.T) {
	a, err := New(WithConfig(&config.Config{APIKey: "from-config"}))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	if a.apiKey != "from-config" {
		t.Fatalf("config key not picked up: %q", a.apiKey)
	}
}

func TestNewBuildsLoggerFromConfig(t *testing.T) {
	a, _ := newTestAgent(t, WithConfig(&config.Config{
		Log: config.LogConfig{Level: "error"},
	}))
	ctx := context.Background()
	if a.log.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("configured error level should filter info records")
	}
	if !a.log.Enabled(ctx, slog.LevelError) {
		t.Fatal("error records should pass the configured level")
	}

	a, _ = newTestAgent(t)
	if !a.log.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("unset level should default to info")
	}
}

func TestWithCapabilitiesRegisters(t *testing.T) {
	a, _ := newTestAgent(t, WithCapabilities(echoCap(t)))
	if len(a.Capabilities()) != 1 {
		t.Fatalf("expected 1 capability, got %d", len(a.Capabilities()))
	}
}

func TestWithCapabilitiesDuplicateFails(t *testing.T) {
	_, err := New(
		WithConfig(&config.Config{APIKey: "k"}),
		WithCapabilities(echoCap(t), echoCap(t)),
	)
	if err == nil {
		t.Fatal("duplicate capability should fail construction")
	}
}

func TestSystemPromptPrefersBuilderPrompt(t *testing.T) {
	a, _ := newTestAgent(t)
	act := mustParseAction(t, doTaskPayload(t))
	act.Me.IsBuiltByAgentBuilder = true
	act.Me.SystemPrompt = "You are a builder agent."
	if got := a.systemPromptFor(act); got != "You are a builder agent." {
		t.Fatalf("builder prompt should win: %q", got)
	}
	act.Me.SystemPrompt = ""
	if got := a.systemPromptFor(act); got != "You are a test agent." {
		t.Fatalf("configured prompt should be the fallback: %q", got)
	}
}
