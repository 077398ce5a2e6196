package wizard

import "errors"

var (
	// ErrBusy rejects a step submitted while the previous one is still running.
	ErrBusy = errors.New("wizard is busy")
	// ErrWrongStep rejects an action that does not belong to the current step.
	ErrWrongStep = errors.New("action not allowed at this step")
	// ErrSessionNotFound is returned for unknown or expired wizard sessions.
	ErrSessionNotFound = errors.New("wizard session not found")
)

// Result is the user-facing outcome of one step.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	// Closed is set when the wizard finished and reset itself.
	Closed bool `json:"closed,omitempty"`
}
