// SPDX-License-Identifier: Apache-2.0

// Package config loads SDK configuration from an optional YAML file and
// OPENSERV_-prefixed environment variables, env taking precedence.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full SDK configuration.
type Config struct {
	// APIKey authenticates against the platform API. Required to build
	// an agent.
	APIKey string `koanf:"api_key"`

	// Port is the HTTP listener port.
	Port int `koanf:"port"`

	// APIBaseURL overrides the platform API endpoint.
	APIBaseURL string `koanf:"api_base_url"`

	// RuntimeURL overrides the runtime collaborator endpoint.
	RuntimeURL string `koanf:"runtime_url"`

	LLM       LLMConfig       `koanf:"llm"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// LLMConfig configures the optional chat-completion provider. The key may
// stay empty for agents that never drive the conversation loop.
type LLMConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// LogConfig configures the slog sink.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// TelemetryConfig configures the OpenTelemetry exporters.
type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// Load reads configuration with defaults, then an optional YAML file,
// then OPENSERV_* environment variables (OPENSERV_LLM_MODEL -> llm.model).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("port", 7378)
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.model", "gpt-4o")
	k.Set("telemetry.exporter", "none")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("OPENSERV_", ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps OPENSERV_LLM_API_KEY to llm.api_key and OPENSERV_API_KEY to
// api_key. Only the section prefix becomes a separator; the remaining
// underscores belong to the key itself.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "OPENSERV_"))
	for _, section := range []string{"llm", "log", "telemetry"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}
