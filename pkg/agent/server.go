// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openserv-labs/agent-go/pkg/errors"
	"github.com/openserv-labs/agent-go/pkg/telemetry"
)

// Start initializes the configured telemetry exporters, binds the HTTP
// listener and begins serving in the background. It returns once the
// listener is bound, or with an error if setup fails. Starting seals the
// capability registry: registration after this point is rejected.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.server != nil {
		a.mu.Unlock()
		return errors.New(errors.CodeConfigError, "agent is already serving", nil)
	}

	if a.cfg.Telemetry.Exporter != "" {
		shutdown, err := telemetry.InitWithConfig(a.name, sdkVersion, telemetry.Config{
			Exporter:     a.cfg.Telemetry.Exporter,
			OTLPEndpoint: a.cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: a.cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			a.mu.Unlock()
			return errors.New(errors.CodeConfigError, "failed to initialize telemetry", err).
				WithContext("exporter", a.cfg.Telemetry.Exporter)
		}
		a.shutdownTelemetry = shutdown
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		shutdownTelemetry := a.shutdownTelemetry
		a.shutdownTelemetry = nil
		a.mu.Unlock()
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(ctx)
		}
		return errors.New(errors.CodeConfigError, "failed to bind listener", err).
			WithContext("port", a.port)
	}

	a.registry.Seal()
	srv := &http.Server{
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.server = srv
	a.addr = ln.Addr().String()
	a.startedAt = time.Now()
	a.mu.Unlock()

	a.log.Info("agent.serving",
		slog.String("agent", a.name),
		slog.String("addr", a.addr),
		slog.Int("tools", a.registry.Len()),
	)

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.log.Error("agent.serve.failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Stop shuts the listener down gracefully, waits for in-flight action
// handlers and flushes the telemetry exporters. Calling Stop on a
// never-started or already-stopped agent is a no-op.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	shutdownTelemetry := a.shutdownTelemetry
	a.shutdownTelemetry = nil
	a.mu.Unlock()

	if srv == nil {
		return nil
	}
	a.WaitForActions()
	err := srv.Shutdown(ctx)
	if shutdownTelemetry != nil {
		if terr := shutdownTelemetry(ctx); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

// Addr returns the bound listener address, or "" before Start.
func (a *Agent) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

func (a *Agent) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /{$}", a.handleRoot)
	mux.HandleFunc("POST /tools/{toolName}", a.handleTool)
	return mux
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": int64(time.Since(a.startedAt).Seconds()),
	})
}

// handleRoot always acknowledges success; action validation failures are
// visible only through the error handler side channel. The platform
// treats this route as fire-and-forget.
func (a *Agent) handleRoot(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		a.notify(r.Context(), errors.New(errors.CodeInvalidInput, "failed to read action payload", err), "handle_root_route")
		writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
		return
	}
	a.HandleRootRoute(r.Context(), payload)
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// handleTool carries dispatch failures in the body envelope rather than
// the HTTP status; only an unknown tool name elevates to 4xx.
func (a *Agent) handleTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("toolName")

	var req ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := a.HandleToolRoute(r.Context(), name, req)
	if err != nil {
		status := http.StatusOK
		if ae := errors.AsAgentError(err); ae.Code == errors.CodeNotFound {
			status = ae.StatusCode
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
