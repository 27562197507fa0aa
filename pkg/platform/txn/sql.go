package txn

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLResource adapts a *sql.DB to Resource. database/sql has no savepoint
// API, so nested transactions issue explicit SAVEPOINT statements; the
// syntax used works on PostgreSQL (the lib/pq driver is the expected
// pairing).
type SQLResource struct {
	name string
	db   *sql.DB
}

// NewSQL wraps db as a named transactional resource.
func NewSQL(name string, db *sql.DB) *SQLResource {
	return &SQLResource{name: name, db: db}
}

// Name implements Resource.
func (r *SQLResource) Name() string { return r.name }

// Begin implements Resource.
func (r *SQLResource) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", r.name, err)
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx    *sql.Tx
	depth int // 0 for the top-level transaction
}

// Unwrap exposes the underlying *sql.Tx so stores can execute statements
// inside the scope's transaction.
func (t *sqlTx) Unwrap() *sql.Tx { return t.tx }

func (t *sqlTx) savepoint() string {
	return fmt.Sprintf("chronicle_sp_%d", t.depth)
}

func (t *sqlTx) Begin(ctx context.Context) (Tx, error) {
	child := &sqlTx{tx: t.tx, depth: t.depth + 1}
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+child.savepoint()); err != nil {
		return nil, fmt.Errorf("create savepoint: %w", err)
	}
	return child, nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	if t.depth == 0 {
		if err := t.tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+t.savepoint()); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	if t.depth == 0 {
		if err := t.tx.Rollback(); err != nil {
			return fmt.Errorf("rollback transaction: %w", err)
		}
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+t.savepoint()); err != nil {
		return fmt.Errorf("rollback to savepoint: %w", err)
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+t.savepoint())
	if err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
