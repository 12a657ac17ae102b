package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/config"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/resilience"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm/anyllm"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm/openai"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt/deepgram"
)

// RegisterBuiltinProviders wires every built-in provider factory into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Hosted backends take an optional API key and base URL. Without a key the
	// backend reads its usual environment variable, e.g. GROQ_API_KEY.
	for _, name := range anyllm.SupportedProviders {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// openai-compatible talks to any OpenAI-style endpoint; Groq by default.
	reg.RegisterLLM("openai-compatible", func(entry config.ProviderEntry) (llm.Provider, error) {
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = openai.GroqBaseURL
		}
		key := entry.APIKey
		if key == "" {
			key = os.Getenv(envOr(optString(entry.Options, "api_key_env"), "GROQ_API_KEY"))
		}
		opts := []openai.Option{openai.WithBaseURL(baseURL)}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(key, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		key := entry.APIKey
		if key == "" {
			key = os.Getenv("DEEPGRAM_API_KEY")
		}
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, deepgram.WithTimeout(d))
		}
		return deepgram.New(key, opts...)
	})

	slog.Debug("registered providers", "llm", reg.LLMNames())
}

// BuildProviders instantiates the providers named in cfg. Configured LLM
// fallbacks are chained behind the primary with a circuit breaker each; the
// STT provider is wrapped the same way. An STT provider named "none" leaves
// Providers.STT nil.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)
	ps.LLM = primary

	if len(cfg.Providers.LLMFallbacks) > 0 {
		chain := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.LLMFallbacks {
			p, err := reg.CreateLLM(entry)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
			}
			chain.AddFallback(entry.Name, p)
			slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
		}
		ps.LLM = chain
	}

	if entry := cfg.Providers.STT; entry.Name != "" && !entry.Disabled() {
		p, err := reg.CreateSTT(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			return nil, fmt.Errorf("create stt provider: %w", err)
		case err != nil:
			// Transcription is optional; the chat API still works without it.
			slog.Warn("stt provider unavailable, /transcribe disabled", "name", entry.Name, "err", err)
		default:
			ps.STT = resilience.NewSTTFallback(p, entry.Name, resilience.FallbackConfig{})
			slog.Info("provider created", "kind", "stt", "name", entry.Name, "model", entry.Model)
		}
	}
	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optDuration parses a duration string such as "20s" from a provider Options
// map. Invalid values are ignored with a warning.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid provider option", "key", key, "value", s, "err", err)
		return 0
	}
	return d
}

func envOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
