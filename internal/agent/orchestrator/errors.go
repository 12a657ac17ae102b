package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSession is returned for a session identifier outside the roster.
	ErrUnknownSession = errors.New("orchestrator: unknown session")

	// ErrEmptyMessage is returned when the user text is empty or only whitespace.
	ErrEmptyMessage = errors.New("orchestrator: empty message")

	// ErrCompletionFailure is returned when the model call fails, times out,
	// is cancelled, or yields an empty reply. No state is recorded.
	ErrCompletionFailure = errors.New("orchestrator: completion failure")
)

// errEmptyReply is the cause attached to [ErrCompletionFailure] when the
// model answers with nothing but whitespace.
var errEmptyReply = errors.New("model returned an empty reply")

// TurnError describes a failed orchestrator operation on one session.
// Use [errors.Is] against the sentinel errors to classify it.
type TurnError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("orchestrator: %s %q: %v", e.Op, e.SessionID, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// Cause returns the underlying reason with the sentinel stripped, suitable
// for showing to a client. It falls back to Err.
func (e *TurnError) Cause() error {
	if u, ok := e.Err.(interface{ Unwrap() []error }); ok {
		for _, err := range u.Unwrap() {
			if !isSentinel(err) {
				return err
			}
		}
	}
	return e.Err
}

func isSentinel(err error) bool {
	return err == ErrUnknownSession || err == ErrEmptyMessage || err == ErrCompletionFailure
}

// completionFailure joins ErrCompletionFailure with its cause so that both
// match errors.Is.
func completionFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrCompletionFailure, cause)
}
