package journal

import (
	"context"
	"sync"
	"time"
)

type inMemoryJournal struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	now      func() time.Time
}

// NewInMemory keeps the latest capacity entries in process. It is the default
// backend for development and tests.
func NewInMemory(capacity int) Journal {
	if capacity <= 0 {
		capacity = MaxLimit
	}
	return &inMemoryJournal{capacity: capacity, now: time.Now}
}

func (j *inMemoryJournal) Record(_ context.Context, e Entry) error {
	e, err := prepare(e, j.now)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	if over := len(j.entries) - j.capacity; over > 0 {
		j.entries = append([]Entry(nil), j.entries[over:]...)
	}
	return nil
}

func (j *inMemoryJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, 0, min(limit, len(j.entries)))
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}
