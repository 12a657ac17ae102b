// Package lexicon asks the language model for word-level help used while
// drafting requirements, currently synonym suggestions.
package lexicon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/types"
)

const synonymPrompt = "You are a helpful assistant that generates synonyms. " +
	"Only provide a comma-separated list of synonyms."

// ErrEmptyWord is returned when Generate is called without a word.
var ErrEmptyWord = errors.New("lexicon: word must not be empty")

// Synonyms generates synonym lists with an LLM provider.
type Synonyms struct {
	llm         llm.Provider
	temperature float64
}

// NewSynonyms creates a [Synonyms] backed by provider.
func NewSynonyms(provider llm.Provider) *Synonyms {
	return &Synonyms{llm: provider, temperature: 0.3}
}

// Generate returns the model's raw answer for word and the parsed list.
func (s *Synonyms) Generate(ctx context.Context, word string) (string, []string, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return "", nil, ErrEmptyWord
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: synonymPrompt,
		Messages: []types.Message{
			{Role: "user", Content: "Generate synonyms for this word: " + word},
		},
		Temperature: s.temperature,
	})
	if err != nil {
		return "", nil, fmt.Errorf("lexicon: synonyms for %q: %w", word, err)
	}
	if resp == nil {
		return "", nil, fmt.Errorf("lexicon: synonyms for %q: empty response", word)
	}
	raw := strings.TrimSpace(resp.Content)
	return raw, ParseList(raw), nil
}

// ParseList splits a comma-separated answer into trimmed, non-empty entries,
// dropping case-insensitive duplicates and a trailing full stop.
func ParseList(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "."))
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
	}
	return out
}
