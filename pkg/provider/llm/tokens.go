package llm

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/types"
)

// perMessageOverhead approximates the role and framing tokens that chat
// formats add around every message.
const perMessageOverhead = 4

var codecCache sync.Map // model name → tokenizer.Codec

// codecFor returns a cached BPE codec for model. OpenAI model families get
// their exact encoding; every other model (llama, mixtral, claude, gemini)
// falls back to cl100k_base, which tends to slightly overcount for them.
func codecFor(model string) (tokenizer.Codec, error) {
	if c, ok := codecCache.Load(model); ok {
		return c.(tokenizer.Codec), nil
	}

	var (
		enc tokenizer.Codec
		err error
	)
	lower := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(lower, "gpt-4o"), strings.HasPrefix(lower, "gpt-4.1"),
		strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		enc, err = tokenizer.Get(tokenizer.O200kBase)
	default:
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
	}
	if err != nil {
		return nil, err
	}

	actual, _ := codecCache.LoadOrStore(model, enc)
	return actual.(tokenizer.Codec), nil
}

// CountMessageTokens counts the tokens messages would occupy for model using a
// tiktoken BPE codec. Providers use it to implement [Provider.CountTokens].
//
// If the codec cannot be loaded it degrades to a 4-characters-per-token
// estimate so callers always get a usable budget figure.
func CountMessageTokens(model string, messages []types.Message) (int, error) {
	enc, err := codecFor(model)
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		if err != nil {
			total += (len(m.Content) + 3) / 4
			continue
		}
		ids, _, encErr := enc.Encode(m.Content)
		if encErr != nil {
			return 0, encErr
		}
		total += len(ids)
	}
	return total, nil
}
