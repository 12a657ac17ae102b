package llm

import (
	"strings"
	"testing"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/types"
)

func TestCountMessageTokens_Empty(t *testing.T) {
	n, err := CountMessageTokens("llama3-8b-8192", nil)
	if err != nil {
		t.Fatalf("CountMessageTokens: %v", err)
	}
	if n != 0 {
		t.Errorf("got %d, want 0", n)
	}
}

func TestCountMessageTokens_IncludesOverhead(t *testing.T) {
	msgs := []types.Message{
		{Role: "user", Content: ""},
		{Role: "assistant", Content: ""},
	}
	n, err := CountMessageTokens("gpt-4o", msgs)
	if err != nil {
		t.Fatalf("CountMessageTokens: %v", err)
	}
	if n != 2*perMessageOverhead {
		t.Errorf("got %d, want %d", n, 2*perMessageOverhead)
	}
}

func TestCountMessageTokens_GrowsWithContent(t *testing.T) {
	short := []types.Message{{Role: "user", Content: "Describe the login flow."}}
	long := []types.Message{{Role: "user", Content: strings.Repeat("Describe the login flow. ", 40)}}

	a, err := CountMessageTokens("llama3-8b-8192", short)
	if err != nil {
		t.Fatalf("short: %v", err)
	}
	b, err := CountMessageTokens("llama3-8b-8192", long)
	if err != nil {
		t.Fatalf("long: %v", err)
	}
	if a <= perMessageOverhead {
		t.Errorf("short count %d should exceed overhead %d", a, perMessageOverhead)
	}
	if b <= a {
		t.Errorf("long count %d should exceed short count %d", b, a)
	}
}

func TestCodecFor_Cached(t *testing.T) {
	if _, err := codecFor("gpt-4o-mini"); err != nil {
		t.Fatalf("codecFor: %v", err)
	}
	if _, ok := codecCache.Load("gpt-4o-mini"); !ok {
		t.Error("expected codec to be cached after first lookup")
	}
}
