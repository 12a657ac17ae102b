package hotctx

import (
	"strings"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/session"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/types"
)

// memoryHeading introduces the digest in the system prompt.
const memoryHeading = "Long-term memory: "

// FormatSystemPrompt returns the expert persona followed, when digest is
// non-empty, by a blank line and the long-term memory section.
//
// The formatter is pure and safe for concurrent use.
func FormatSystemPrompt(persona, digest string) string {
	persona = strings.TrimSpace(persona)
	digest = strings.TrimSpace(digest)
	switch {
	case digest == "":
		return persona
	case persona == "":
		return memoryHeading + digest
	default:
		return persona + "\n\n" + memoryHeading + digest
	}
}

// BuildMessages maps the composed history to chat messages and appends the
// new user message. A nil hctx yields only the user message.
func BuildMessages(hctx *Context, userText string) []types.Message {
	var history []session.Turn
	if hctx != nil {
		history = hctx.History
	}
	msgs := make([]types.Message, 0, len(history)+1)
	for _, t := range history {
		msgs = append(msgs, types.Message{Role: string(t.Role), Content: t.Content})
	}
	return append(msgs, types.Message{Role: string(session.RoleUser), Content: userText})
}
