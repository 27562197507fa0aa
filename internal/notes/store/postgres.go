// Package store persists notes to PostgreSQL. Writes join the revision
// scope's transaction when one is open on the context, so a note row and the
// revision recording it commit or roll back together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chronicle/internal/notes"
	"chronicle/pkg/platform/sentinel"
	"chronicle/pkg/platform/txn"
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT ''
);
`

// Postgres is the notes store.
type Postgres struct {
	db       *sql.DB
	resource string
}

// NewPostgres creates a store over db. resource names the transactional
// resource whose scope transaction writes should join.
func NewPostgres(db *sql.DB, resource string) *Postgres {
	return &Postgres{db: db, resource: resource}
}

// EnsureSchema applies the notes schema.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply notes schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txn.From(ctx, s.resource); ok {
		if wrapped, ok := tx.(interface{ Unwrap() *sql.Tx }); ok {
			return wrapped.Unwrap()
		}
	}
	return s.db
}

// Upsert writes the note, inserting or updating by ID.
func (s *Postgres) Upsert(ctx context.Context, n *notes.Note) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notes (id, title, body) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body
	`, n.ID, n.Title, n.Body)
	if err != nil {
		return fmt.Errorf("upsert note %s: %w", n.ID, err)
	}
	return nil
}

// Get returns the note or sentinel.ErrNotFound.
func (s *Postgres) Get(ctx context.Context, id string) (*notes.Note, error) {
	n := &notes.Note{}
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, title, body FROM notes WHERE id = $1
	`, id).Scan(&n.ID, &n.Title, &n.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}
	return n, nil
}

// Delete removes the note or returns sentinel.ErrNotFound.
func (s *Postgres) Delete(ctx context.Context, id string) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("note %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
