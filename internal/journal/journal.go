// Package journal records the actions operators take through the console. It
// is an audit trail of console activity, not a copy of user data.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Outcomes of a journaled action.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

const (
	// DefaultLimit is used by Recent when the caller passes no positive limit.
	DefaultLimit = 50
	// MaxLimit caps a single Recent call.
	MaxLimit = 500
)

// ErrInvalidEntry is returned for entries without an action.
var ErrInvalidEntry = errors.New("journal entry requires an action")

// Entry is one operator action.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	At        time.Time `json:"at"`
	Operator  string    `json:"operator"`
	RequestID string    `json:"request_id,omitempty"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
}

// Journal stores entries and lists the most recent ones first.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// prepare fills the ID and timestamp and checks the entry.
func prepare(e Entry, now func() time.Time) (Entry, error) {
	if e.Action == "" {
		return Entry{}, ErrInvalidEntry
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = now()
	}
	e.At = e.At.UTC()
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}
	return e, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
