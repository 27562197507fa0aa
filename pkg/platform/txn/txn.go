// Package txn abstracts the transactional resource a revision scope wraps:
// scoped acquire/release with nested (savepoint) semantics and
// commit-or-rollback exit. Open transactions travel through context so
// stores run inside the scope's transaction.
package txn

import "context"

// Resource is a named transactional resource, typically a database.
type Resource interface {
	// Name tags transactions and emitted revisions with the resource
	// identity; scopes count open depth per name.
	Name() string
	// Begin opens a top-level transaction.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one open transaction. Begin on a Tx opens a nested transaction
// (savepoint); committing a nested Tx releases its savepoint, rolling it
// back rewinds to it. The Tx is exclusively owned by the scope that opened
// it.
type Tx interface {
	Begin(ctx context.Context) (Tx, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type txKey struct{ resource string }

// WithTx stores an open transaction for a resource name in context.
func WithTx(ctx context.Context, resource string, tx Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{resource: resource}, tx)
}

// From extracts the innermost open transaction for a resource name.
func From(ctx context.Context, resource string) (Tx, bool) {
	tx, ok := ctx.Value(txKey{resource: resource}).(Tx)
	return tx, ok
}
