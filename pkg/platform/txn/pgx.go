package txn

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxResource adapts a pgx connection pool to Resource. pgx implements
// nested Begin as savepoints natively, so no statement juggling is needed.
type PgxResource struct {
	name string
	pool *pgxpool.Pool
}

// NewPgx wraps pool as a named transactional resource.
func NewPgx(name string, pool *pgxpool.Pool) *PgxResource {
	return &PgxResource{name: name, pool: pool}
}

// Name implements Resource.
func (r *PgxResource) Name() string { return r.name }

// Begin implements Resource.
func (r *PgxResource) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", r.name, err)
	}
	return &pgxTx{tx: tx}, nil
}

type pgxTx struct {
	tx pgx.Tx
}

// Unwrap exposes the underlying pgx.Tx so stores can execute statements
// inside the scope's transaction.
func (t *pgxTx) Unwrap() pgx.Tx { return t.tx }

func (t *pgxTx) Begin(ctx context.Context) (Tx, error) {
	nested, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin nested transaction: %w", err)
	}
	return &pgxTx{tx: nested}, nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
