package config_test

import (
	"testing"
	"time"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "INFO"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"listen_addr", cfg.Server.ListenAddr, "127.0.0.1:8000"},
		{"log_level", cfg.Server.LogLevel, config.LogInfo},
		{"shutdown_timeout", cfg.Server.ShutdownTimeout, 15 * time.Second},
		{"llm.name", cfg.Providers.LLM.Name, "groq"},
		{"llm.model", cfg.Providers.LLM.Model, "llama3-8b-8192"},
		{"stt.name", cfg.Providers.STT.Name, "deepgram"},
		{"stt.model", cfg.Providers.STT.Model, "nova-2"},
		{"turn_timeout", cfg.Conversation.TurnTimeout, 30 * time.Second},
		{"max_concurrent_turns", cfg.Conversation.MaxConcurrentTurns, 8},
		{"history_token_budget", cfg.Conversation.HistoryTokenBudget, 0},
		{"memory.capacity", cfg.Memory.Capacity, 5},
		{"memory.min_length", cfg.Memory.MinLength, 20},
		{"subject_prefix", cfg.Events.SubjectPrefix, "scriptbuilder"},
		{"metrics_path", cfg.Telemetry.MetricsPath, "/metrics"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "openai"},
		},
		Memory: config.MemoryConfig{Capacity: 9},
	}
	config.ApplyDefaults(cfg)

	if cfg.Providers.LLM.Name != "openai" {
		t.Errorf("llm.name = %q", cfg.Providers.LLM.Name)
	}
	if cfg.Providers.LLM.Model != "" {
		t.Errorf("llm.model = %q, want no groq model forced onto openai", cfg.Providers.LLM.Model)
	}
	if cfg.Memory.Capacity != 9 {
		t.Errorf("memory.capacity = %d", cfg.Memory.Capacity)
	}
}

func TestExpertList(t *testing.T) {
	t.Parallel()

	t.Run("defaults when empty", func(t *testing.T) {
		t.Parallel()
		got := (&config.Config{}).ExpertList()
		if len(got) != 8 {
			t.Fatalf("len = %d, want the 8 built-in experts", len(got))
		}
	})

	t.Run("configured", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Experts: []config.ExpertConfig{
			{ID: "vision", Name: "Vision", Persona: "You set the vision.", Parents: []string{"vision"}},
			{ID: "scope", Persona: "You set the scope.", Parents: []string{"vision"}},
		}}
		got := cfg.ExpertList()
		if len(got) != 2 {
			t.Fatalf("len = %d", len(got))
		}
		if got[0].DisplayName != "Vision" || got[1].Parents[0] != "vision" {
			t.Errorf("experts = %+v", got)
		}
	})
}

func TestProviderEntry_Disabled(t *testing.T) {
	t.Parallel()
	if !(config.ProviderEntry{Name: "none"}).Disabled() {
		t.Error("none should be disabled")
	}
	if (config.ProviderEntry{Name: "deepgram"}).Disabled() {
		t.Error("deepgram should not be disabled")
	}
}
