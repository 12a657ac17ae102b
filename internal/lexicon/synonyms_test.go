package lexicon

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm"
	llmmock "github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm/mock"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"simple", "quick, fast, rapid", []string{"quick", "fast", "rapid"}},
		{"duplicates", "Fast, fast, swift, FAST", []string{"Fast", "swift"}},
		{"empty entries", "quick,, ,rapid,", []string{"quick", "rapid"}},
		{"trailing stop", "quick, speedy.", []string{"quick", "speedy"}},
		{"multi word", "in a hurry, at speed", []string{"in a hurry", "at speed"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseList(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseList(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: " robust, sturdy, resilient "},
	}
	s := NewSynonyms(p)

	raw, list, err := s.Generate(context.Background(), " reliable ")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if raw != "robust, sturdy, resilient" {
		t.Errorf("raw = %q", raw)
	}
	if !reflect.DeepEqual(list, []string{"robust", "sturdy", "resilient"}) {
		t.Errorf("list = %q", list)
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if req.SystemPrompt != synonymPrompt {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "Generate synonyms for this word: reliable" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("empty word", func(t *testing.T) {
		p := &llmmock.Provider{}
		_, _, err := NewSynonyms(p).Generate(context.Background(), "  ")
		if !errors.Is(err, ErrEmptyWord) {
			t.Fatalf("err = %v, want ErrEmptyWord", err)
		}
		if len(p.CompleteCalls) != 0 {
			t.Error("provider called for empty word")
		}
	})

	t.Run("provider error", func(t *testing.T) {
		cause := errors.New("rate limited")
		p := &llmmock.Provider{CompleteErr: cause}
		_, _, err := NewSynonyms(p).Generate(context.Background(), "fast")
		if !errors.Is(err, cause) {
			t.Fatalf("err = %v, want wrapped %v", err, cause)
		}
	})

	t.Run("nil response", func(t *testing.T) {
		_, _, err := NewSynonyms(&llmmock.Provider{}).Generate(context.Background(), "fast")
		if err == nil {
			t.Fatal("expected error")
		}
	})
}
