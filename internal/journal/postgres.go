package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS console_journal (
    id         UUID PRIMARY KEY,
    at         TIMESTAMPTZ NOT NULL,
    operator   TEXT NOT NULL,
    request_id TEXT NOT NULL DEFAULT '',
    action     TEXT NOT NULL,
    target     TEXT NOT NULL DEFAULT '',
    outcome    TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS console_journal_at_idx ON console_journal (at DESC);`

// PostgresJournal persists entries in PostgreSQL.
type PostgresJournal struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresJournal constructs a Postgres-backed journal.
func NewPostgresJournal(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db, now: time.Now}
}

// EnsureSchema creates the journal table when missing.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Record inserts e.
func (j *PostgresJournal) Record(ctx context.Context, e Entry) error {
	e, err := prepare(e, j.now)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(ctx, `INSERT INTO console_journal
        (id, at, operator, request_id, action, target, outcome, detail)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.At, e.Operator, e.RequestID, e.Action, e.Target, e.Outcome, e.Detail)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.Query(ctx, `SELECT id, at, operator, request_id, action, target, outcome, detail
        FROM console_journal ORDER BY at DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Operator, &e.RequestID, &e.Action, &e.Target, &e.Outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.At = e.At.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}
