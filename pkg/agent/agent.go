// SPDX-License-Identifier: Apache-2.0

// Package agent implements the agent facade: the capability registry, the
// tool dispatch pipeline, the LLM conversation loop, the action router and
// the HTTP surface the platform calls into.
package agent

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/openserv-labs/agent-go/pkg/action"
	"github.com/openserv-labs/agent-go/pkg/capability"
	"github.com/openserv-labs/agent-go/pkg/config"
	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/llm"
	"github.com/openserv-labs/agent-go/pkg/platform"
	"github.com/openserv-labs/agent-go/pkg/telemetry"
)

// sdkVersion identifies this SDK build in telemetry resources.
const sdkVersion = "0.1.0"

// ErrorHandler is the single seam every failure passes through before it
// is contained or returned. The context string names the originating call
// site: handle_tool_route, handle_root_route, tool_execution, process,
// do_task or respond_to_chat.
type ErrorHandler func(err error, context string)

// ActionHandler reacts to a routed action. The defaults forward to the
// runtime collaborator; set your own via WithDoTaskHandler and
// WithRespondToChatHandler to handle actions in-process.
type ActionHandler func(ctx context.Context, act *action.Action) error

// Agent composes the registry, dispatch pipeline, conversation loop and
// router, and owns the HTTP lifecycle.
type Agent struct {
	name         string
	systemPrompt string
	apiKey       string
	port         int
	model        string

	cfg      *config.Config
	registry *capability.Registry
	llm      llm.Provider
	platform *platform.Client
	runtime  *platform.RuntimeClient

	onError       ErrorHandler
	doTask        ActionHandler
	respondToChat ActionHandler

	log     *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.AgentMetrics

	mu                sync.Mutex
	server            *http.Server
	addr              string
	startedAt         time.Time
	shutdownTelemetry telemetry.ShutdownFunc

	// background tracks fire-and-forget action handlers so tests and
	// graceful shutdown can wait for them.
	background sync.WaitGroup
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates an Agent. Configuration is resolved from OPENSERV_*
// environment variables first, then overridden by options. A missing
// platform API key fails construction immediately.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		registry:  capability.NewRegistry(),
		port:      -1,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	if a.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, errors.New(errors.CodeConfigError, "failed to load configuration", err)
		}
		a.cfg = cfg
	}
	if a.name == "" {
		a.name = "openserv-agent"
	}
	if a.apiKey == "" {
		a.apiKey = a.cfg.APIKey
	}
	if a.apiKey == "" {
		return nil, errors.New(errors.CodeConfigError, "platform API key is required", nil)
	}
	if a.port < 0 {
		a.port = a.cfg.Port
	}
	if a.log == nil {
		a.log = telemetry.NewLogger(os.Stderr, a.cfg.Log.Level, a.cfg.Log.Format)
	}
	if a.platform == nil {
		a.platform = platform.NewClient(a.cfg.APIBaseURL, a.apiKey, platform.WithLogger(a.log))
	}
	if a.runtime == nil {
		a.runtime = platform.NewRuntimeClient(a.cfg.RuntimeURL, a.apiKey)
	}
	if a.model == "" {
		a.model = a.cfg.LLM.Model
	}
	if a.llm == nil && a.cfg.LLM.APIKey != "" {
		llmOpts := []llm.OpenAIOption{llm.WithAPIKey(a.cfg.LLM.APIKey)}
		if a.model != "" {
			llmOpts = append(llmOpts, llm.WithModel(a.model))
		}
		if a.cfg.LLM.BaseURL != "" {
			llmOpts = append(llmOpts, llm.WithBaseURL(a.cfg.LLM.BaseURL))
		}
		a.llm = llm.NewOpenAI(llmOpts...)
	}
	if a.onError == nil {
		a.onError = a.logError
	}
	if a.doTask == nil {
		a.doTask = a.forwardTask
	}
	if a.respondToChat == nil {
		a.respondToChat = a.forwardChat
	}

	a.tracer = otel.Tracer("openserv/agent")
	if metrics, err := telemetry.NewAgentMetrics(); err == nil {
		a.metrics = metrics
	}
	return a, nil
}

// WithName sets the agent name used in logs and telemetry.
func WithName(name string) Option {
	return func(a *Agent) error {
		a.name = name
		return nil
	}
}

// WithSystemPrompt sets the system prompt the default handlers and the
// conversation loop lead with.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) error {
		a.systemPrompt = prompt
		return nil
	}
}

// WithAPIKey sets the platform API key explicitly instead of reading
// OPENSERV_API_KEY.
func WithAPIKey(key string) Option {
	return func(a *Agent) error {
		a.apiKey = key
		return nil
	}
}

// WithPort sets the HTTP listener port. Use 0 for an ephemeral port.
func WithPort(port int) Option {
	return func(a *Agent) error {
		if port < 0 {
			return errors.Newf(errors.CodeConfigError, "invalid port %d", port)
		}
		a.port = port
		return nil
	}
}

// WithConfig supplies a pre-loaded configuration instead of reading the
// environment.
func WithConfig(cfg *config.Config) Option {
	return func(a *Agent) error {
		if cfg == nil {
			return errors.New(errors.CodeConfigError, "config is required", nil)
		}
		a.cfg = cfg
		return nil
	}
}

// WithModel sets the chat completion model.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = model
		return nil
	}
}

// WithLLM sets the chat completion provider. Without a provider (and with
// no configured OpenAI key) Process fails at first call.
func WithLLM(p llm.Provider) Option {
	return func(a *Agent) error {
		a.llm = p
		return nil
	}
}

// WithPlatformClient replaces the platform API client.
func WithPlatformClient(c *platform.Client) Option {
	return func(a *Agent) error {
		a.platform = c
		return nil
	}
}

// WithRuntimeClient replaces the runtime collaborator client.
func WithRuntimeClient(c *platform.RuntimeClient) Option {
	return func(a *Agent) error {
		a.runtime = c
		return nil
	}
}

// WithErrorHandler replaces the default logging error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *Agent) error {
		if h == nil {
			return errors.New(errors.CodeConfigError, "error handler is required", nil)
		}
		a.onError = h
		return nil
	}
}

// WithDoTaskHandler replaces the default do-task forwarding behavior.
func WithDoTaskHandler(h ActionHandler) Option {
	return func(a *Agent) error {
		a.doTask = h
		return nil
	}
}

// WithRespondToChatHandler replaces the default chat forwarding behavior.
func WithRespondToChatHandler(h ActionHandler) Option {
	return func(a *Agent) error {
		a.respondToChat = h
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) error {
		a.log = log
		return nil
	}
}

// WithCapabilities registers capabilities at construction time.
func WithCapabilities(caps ...*capability.Capability) Option {
	return func(a *Agent) error {
		return a.registry.RegisterMany(caps)
	}
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Register adds a capability to the agent's registry.
func (a *Agent) Register(c *capability.Capability) error {
	return a.registry.Register(c)
}

// RegisterMany adds capabilities in order, stopping at the first failure.
func (a *Agent) RegisterMany(caps []*capability.Capability) error {
	return a.registry.RegisterMany(caps)
}

// Capabilities returns the registered capabilities in registration order.
func (a *Agent) Capabilities() []*capability.Capability {
	return a.registry.List()
}

// Platform returns the platform API client for pass-through calls.
func (a *Agent) Platform() *platform.Client { return a.platform }

// notify routes a failure through the centralized handler. It fires once
// per originating failure; callers must not notify again for the same
// error on an outer layer.
func (a *Agent) notify(ctx context.Context, err error, contextTag string) {
	a.metrics.RecordError(ctx, err, contextTag)
	a.onError(err, contextTag)
}

func (a *Agent) logError(err error, contextTag string) {
	a.log.Error("agent.error",
		slog.String("agent", a.name),
		slog.String("context", contextTag),
		slog.String("error", err.Error()),
	)
}

// systemPromptFor prefers the builder-supplied prompt carried on the
// action's identity over the locally configured one.
func (a *Agent) systemPromptFor(act *action.Action) string {
	if act != nil && act.Me.SystemPrompt != "" {
		return act.Me.SystemPrompt
	}
	return a.systemPrompt
}
