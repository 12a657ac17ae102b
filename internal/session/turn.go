// Package session holds the per-expert conversation logs.
//
// A [Store] maps each session identifier to its ordered list of [Turn]
// values. Logs are created lazily on first access and live for the lifetime
// of the process; nothing is ever evicted. The only mutation besides
// appending is [Store.EditLastAssistantTurn], which rewrites the content of
// the most recent assistant turn in place.
//
// All exported types are safe for concurrent use.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role discriminates who produced a [Turn].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation log.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Inherited marks a synthetic turn built from a parent session's output
	// for a composed view. Inherited turns are never stored in a log.
	Inherited bool `json:"inherited,omitempty"`
}

// NewTurn returns a turn with a fresh ID. CreatedAt is left zero so that
// [Store.Append] stamps it with the store's clock.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// IsEditable reports whether t may be changed by the message editor.
func (t Turn) IsEditable() bool {
	return t.Role == RoleAssistant && !t.Inherited
}
