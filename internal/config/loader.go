package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// [Validate] warns about names outside these lists.
var ValidProviderNames = map[string][]string{
	"llm": {"groq", "openai", "openai-compatible", "anthropic", "ollama", "gemini", "deepseek", "mistral", "llamacpp", "llamafile"},
	"stt": {"deepgram", "none"},
}

// Load reads the YAML configuration at path, expands ${VAR} references from
// the environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r. An empty document yields the
// defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent and returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error

	s := cfg.Server
	if s.LogLevel != "" && !s.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", s.LogLevel))
	}
	for name, d := range map[string]int64{
		"server.read_timeout":     int64(s.ReadTimeout),
		"server.write_timeout":    int64(s.WriteTimeout),
		"server.shutdown_timeout": int64(s.ShutdownTimeout),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	validateProviderName("stt", cfg.Providers.STT.Name)

	c := cfg.Conversation
	if c.TurnTimeout < 0 {
		errs = append(errs, errors.New("conversation.turn_timeout must not be negative"))
	}
	if c.MaxConcurrentTurns < 0 {
		errs = append(errs, errors.New("conversation.max_concurrent_turns must not be negative"))
	}
	if c.HistoryTokenBudget < 0 {
		errs = append(errs, errors.New("conversation.history_token_budget must not be negative"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("conversation.temperature %.2f is out of range [0, 2]", c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("conversation.max_tokens must not be negative"))
	}

	if cfg.Memory.Capacity < 0 {
		errs = append(errs, errors.New("memory.capacity must not be negative"))
	}
	if cfg.Memory.MinLength < 0 {
		errs = append(errs, errors.New("memory.min_length must not be negative"))
	}

	errs = append(errs, validateExperts(cfg.Experts)...)

	if mp := cfg.Telemetry.MetricsPath; mp != "" && !strings.HasPrefix(mp, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", mp))
	}

	return errors.Join(errs...)
}

func validateExperts(experts []ExpertConfig) []error {
	var errs []error
	seen := make(map[string]int, len(experts))
	for i, e := range experts {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("experts[%d].id is required", i))
			continue
		}
		if prev, ok := seen[e.ID]; ok {
			errs = append(errs, fmt.Errorf("experts[%d].id %q is a duplicate of experts[%d]", i, e.ID, prev))
			continue
		}
		seen[e.ID] = i
		if strings.TrimSpace(e.Persona) == "" {
			slog.Warn("expert has no persona; replies will lack a system prompt", "expert", e.ID)
		}
	}
	for i, e := range experts {
		for _, p := range e.Parents {
			if _, ok := seen[p]; !ok {
				errs = append(errs, fmt.Errorf("experts[%d].parents: unknown expert %q", i, p))
			}
		}
	}
	return errs
}

// validateProviderName warns when name is not a known provider of kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
