package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm"
	llmmock "github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm/mock"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/types"
)

func newLLMPair() (*llmmock.Provider, *llmmock.Provider, *LLMFallback) {
	primary := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "from groq"},
		TokenCount:        42,
		ModelCapabilities: types.ModelCapabilities{ContextWindow: 8_192},
	}
	secondary := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "from openai"},
		TokenCount:        7,
		ModelCapabilities: types.ModelCapabilities{ContextWindow: 128_000},
	}
	fb := NewLLMFallback(primary, "groq", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)
	return primary, secondary, fb
}

func TestLLMFallback_Complete(t *testing.T) {
	t.Run("primary", func(t *testing.T) {
		primary, secondary, fb := newLLMPair()
		resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if resp.Content != "from groq" {
			t.Errorf("content = %q", resp.Content)
		}
		if primary.CompleteCallCount() != 1 || secondary.CompleteCallCount() != 0 {
			t.Errorf("calls = %d/%d, want 1/0", primary.CompleteCallCount(), secondary.CompleteCallCount())
		}
	})

	t.Run("failover", func(t *testing.T) {
		primary, _, fb := newLLMPair()
		primary.CompleteErr = errors.New("groq: 503")
		resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if resp.Content != "from openai" {
			t.Errorf("content = %q", resp.Content)
		}
	})

	t.Run("all fail", func(t *testing.T) {
		primary, secondary, fb := newLLMPair()
		primary.CompleteErr = errors.New("groq: 503")
		secondary.CompleteErr = errors.New("openai: 429")
		if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
			t.Fatalf("err = %v, want ErrAllFailed", err)
		}
	})
}

func TestLLMFallback_StreamCompletion_Failover(t *testing.T) {
	primary, secondary, fb := newLLMPair()
	primary.StreamErr = errors.New("groq: connection refused")
	secondary.StreamChunks = []llm.Chunk{{Text: "hi"}, {FinishReason: "stop"}}

	ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	var text string
	for c := range ch {
		text += c.Text
	}
	if text != "hi" {
		t.Errorf("text = %q", text)
	}
}

func TestLLMFallback_StaticMetadataFromPrimary(t *testing.T) {
	primary, secondary, fb := newLLMPair()
	primary.CompleteErr = errors.New("down")

	n, err := fb.CountTokens([]types.Message{{Role: "user", Content: "x"}})
	if err != nil || n != 42 {
		t.Errorf("CountTokens = %d, %v; want 42 from primary", n, err)
	}
	if len(secondary.CountTokensCalls) != 0 {
		t.Error("secondary tokenizer used")
	}
	if got := fb.Capabilities().ContextWindow; got != 8_192 {
		t.Errorf("ContextWindow = %d, want primary's 8192", got)
	}
	if fb.Name() != "groq+openai" {
		t.Errorf("Name() = %q", fb.Name())
	}
	if len(fb.States()) != 2 {
		t.Errorf("States() = %v", fb.States())
	}
}
