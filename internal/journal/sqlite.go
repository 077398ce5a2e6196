package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS console_journal (
    id         TEXT PRIMARY KEY,
    at_ns      INTEGER NOT NULL,
    operator   TEXT NOT NULL,
    request_id TEXT NOT NULL DEFAULT '',
    action     TEXT NOT NULL,
    target     TEXT NOT NULL DEFAULT '',
    outcome    TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS console_journal_at_idx ON console_journal (at_ns DESC);`

// SQLiteJournal persists entries in a local SQLite file for single-node
// deployments.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal wraps db, which must use the "sqlite" driver.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db, now: time.Now}
}

// EnsureSchema creates the journal table when missing.
func (j *SQLiteJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Record inserts e.
func (j *SQLiteJournal) Record(ctx context.Context, e Entry) error {
	e, err := prepare(e, j.now)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, `INSERT INTO console_journal
        (id, at_ns, operator, request_id, action, target, outcome, detail)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.At.UnixNano(), e.Operator, e.RequestID, e.Action, e.Target, e.Outcome, e.Detail)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT id, at_ns, operator, request_id, action, target, outcome, detail
        FROM console_journal ORDER BY at_ns DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			id string
			at int64
		)
		if err := rows.Scan(&id, &at, &e.Operator, &e.RequestID, &e.Action, &e.Target, &e.Outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse journal id %q: %w", id, err)
		}
		e.At = time.Unix(0, at).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}
