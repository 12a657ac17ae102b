// Package config provides the configuration schema, loader, and provider
// registry for the ScriptBuilder server.
package config

import (
	"time"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/agent"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr         = "127.0.0.1:8000"
	DefaultLLMProvider        = "groq"
	DefaultLLMModel           = "llama3-8b-8192"
	DefaultSTTProvider        = "deepgram"
	DefaultSTTModel           = "nova-2"
	DefaultTurnTimeout        = 30 * time.Second
	DefaultMaxConcurrentTurns = 8
	DefaultMemoryCapacity     = 5
	DefaultMemoryMinLength    = 20
	DefaultSubjectPrefix      = "scriptbuilder"
	DefaultMetricsPath        = "/metrics"
	DefaultShutdownTimeout    = 15 * time.Second
)

// Config is the root configuration structure. Load it with [Load] or
// [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Conversation ConversationConfig `yaml:"conversation"`
	Memory       MemoryConfig       `yaml:"memory"`
	Experts      []ExpertConfig     `yaml:"experts"`
	Events       EventsConfig       `yaml:"events"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the HTTP API.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, receives a rotated copy of the log output.
	LogFile string `yaml:"log_file"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig selects the provider implementations by registry name.
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary LLM fails.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// STT may be disabled with name "none"; /transcribe then answers 503.
	STT ProviderEntry `yaml:"stt"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
// Name selects the constructor in the [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// Disabled reports whether the entry explicitly turns the provider off.
func (e ProviderEntry) Disabled() bool { return e.Name == "none" }

// ConversationConfig tunes the orchestrator.
type ConversationConfig struct {
	TurnTimeout        time.Duration `yaml:"turn_timeout"`
	MaxConcurrentTurns int           `yaml:"max_concurrent_turns"`

	// HistoryTokenBudget caps the prompt size; 0 disables trimming.
	HistoryTokenBudget int `yaml:"history_token_budget"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// MemoryConfig tunes the long-term memory store.
type MemoryConfig struct {
	Capacity  int `yaml:"capacity"`
	MinLength int `yaml:"min_length"`
}

// ExpertConfig declares one expert persona.
type ExpertConfig struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Persona string   `yaml:"persona"`
	Parents []string `yaml:"parents"`
}

// EventsConfig configures NATS publication. An empty NATSURL disables it.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	Token         string `yaml:"token"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// TelemetryConfig configures OpenTelemetry and the scrape endpoint.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	MetricsPath string `yaml:"metrics_path"`
}

// ExpertList returns the configured experts, or [agent.DefaultExperts] when
// none are configured.
func (c *Config) ExpertList() []agent.Expert {
	if len(c.Experts) == 0 {
		return agent.DefaultExperts()
	}
	out := make([]agent.Expert, 0, len(c.Experts))
	for _, e := range c.Experts {
		out = append(out, agent.Expert{
			ID:          e.ID,
			DisplayName: e.Name,
			Persona:     e.Persona,
			Parents:     e.Parents,
		})
	}
	return out
}

// ApplyDefaults fills zero values in cfg.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	p := &cfg.Providers
	if p.LLM.Name == "" {
		p.LLM.Name = DefaultLLMProvider
	}
	if p.LLM.Model == "" && p.LLM.Name == DefaultLLMProvider {
		p.LLM.Model = DefaultLLMModel
	}
	if p.STT.Name == "" {
		p.STT.Name = DefaultSTTProvider
	}
	if p.STT.Model == "" && p.STT.Name == DefaultSTTProvider {
		p.STT.Model = DefaultSTTModel
	}

	c := &cfg.Conversation
	if c.TurnTimeout == 0 {
		c.TurnTimeout = DefaultTurnTimeout
	}
	if c.MaxConcurrentTurns == 0 {
		c.MaxConcurrentTurns = DefaultMaxConcurrentTurns
	}

	if cfg.Memory.Capacity == 0 {
		cfg.Memory.Capacity = DefaultMemoryCapacity
	}
	if cfg.Memory.MinLength == 0 {
		cfg.Memory.MinLength = DefaultMemoryMinLength
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "scriptbuilder"
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = DefaultMetricsPath
	}
}
