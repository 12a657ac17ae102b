// Package events publishes domain events about chat turns, edits, and
// transcriptions so other services can follow what the expert panel does.
//
// Publishing is best effort. Callers log a failed publish and carry on; an
// event never decides whether a turn succeeds.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an event. It is appended to the subject prefix on the wire.
type Type string

const (
	TypeTurnCompleted          Type = "turn.completed"
	TypeMessageEdited          Type = "message.edited"
	TypeTranscriptionCompleted Type = "transcription.completed"
)

// Event is the envelope written to the bus.
type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// TurnCompleted is published after a chat turn has been recorded.
type TurnCompleted struct {
	SessionID      string `json:"session_id"`
	UserChars      int    `json:"user_chars"`
	ReplyChars     int    `json:"reply_chars"`
	MemoryRecorded bool   `json:"memory_recorded"`
	Inherited      int    `json:"inherited"`
	DurationMS     int64  `json:"duration_ms"`
}

// MessageEdited is published after an assistant turn was rewritten.
type MessageEdited struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
}

// TranscriptionCompleted is published after an upload was transcribed.
type TranscriptionCompleted struct {
	Segments int `json:"segments"`
	Speakers int `json:"speakers"`
}

// New wraps payload in an envelope with a fresh ID and the current time.
func New(t Type, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    t,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event. It is used when no bus is configured.
type Nop struct{}

var _ Publisher = Nop{}

// Publish implements [Publisher].
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements [Publisher].
func (Nop) Close() error { return nil }
