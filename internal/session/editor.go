package session

import "errors"

var (
	// ErrSectionNotFound is returned when the session has no log or an empty one.
	ErrSectionNotFound = errors.New("section not found")

	// ErrNoEditableMessage is returned when the log holds no assistant turn.
	ErrNoEditableMessage = errors.New("no editable message")
)

// EditLastAssistant scans log from the newest turn backwards and replaces the
// content of the first editable assistant turn with newText. It returns the
// index of the edited turn. Position, role, and every other turn are left
// untouched; on error log is not modified.
func EditLastAssistant(log []Turn, newText string) (int, error) {
	if len(log) == 0 {
		return -1, ErrSectionNotFound
	}
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].IsEditable() {
			log[i].Content = newText
			return i, nil
		}
	}
	return -1, ErrNoEditableMessage
}
