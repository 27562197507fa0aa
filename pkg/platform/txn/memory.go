package txn

import (
	"context"
	"sync"
)

// MemResource is an in-memory Resource for tests. It performs no real
// transactional work but keeps counters so tests can assert on
// begin/savepoint/commit/rollback accounting.
type MemResource struct {
	name string

	mu         sync.Mutex
	begins     int
	savepoints int
	commits    int
	rollbacks  int
}

// NewMem returns a named in-memory transactional resource.
func NewMem(name string) *MemResource {
	return &MemResource{name: name}
}

// Name implements Resource.
func (r *MemResource) Name() string { return r.name }

// Begin implements Resource.
func (r *MemResource) Begin(_ context.Context) (Tx, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins++
	return &memTx{res: r, depth: 0}, nil
}

// Begins returns how many top-level transactions were opened.
func (r *MemResource) Begins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begins
}

// Savepoints returns how many nested transactions were opened.
func (r *MemResource) Savepoints() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.savepoints
}

// Commits returns how many transactions (any depth) committed.
func (r *MemResource) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// Rollbacks returns how many transactions (any depth) rolled back.
func (r *MemResource) Rollbacks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rollbacks
}

type memTx struct {
	res   *MemResource
	depth int
}

func (t *memTx) Begin(_ context.Context) (Tx, error) {
	t.res.mu.Lock()
	defer t.res.mu.Unlock()
	t.res.savepoints++
	return &memTx{res: t.res, depth: t.depth + 1}, nil
}

func (t *memTx) Commit(_ context.Context) error {
	t.res.mu.Lock()
	defer t.res.mu.Unlock()
	t.res.commits++
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	t.res.mu.Lock()
	defer t.res.mu.Unlock()
	t.res.rollbacks++
	return nil
}
