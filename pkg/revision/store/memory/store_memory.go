package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"chronicle/pkg/requestcontext"
	"chronicle/pkg/revision"
)

// Snapshotter serializes a live entity at persistence time. The registry
// that emitted the revision satisfies this.
type Snapshotter interface {
	Snapshot(e revision.Entity) (revision.Snapshot, error)
}

// StoredRevision is one persisted revision with its version snapshots.
type StoredRevision struct {
	ID        uuid.UUID
	Resource  string
	Actor     any
	Comment   string
	Meta      []any
	CreatedAt time.Time
	Versions  []revision.Snapshot
}

// InMemoryStore persists emitted revisions in memory. It subscribes to a
// registry as a revision listener; useful for tests and single-process
// setups.
type InMemoryStore struct {
	snap Snapshotter
	now  func(ctx context.Context) time.Time

	mu        sync.RWMutex
	revisions []StoredRevision
}

// NewInMemoryStore creates a memory-backed revision store. Revisions are
// stamped with the request-pinned time when one is on the context.
func NewInMemoryStore(snap Snapshotter) *InMemoryStore {
	return &InMemoryStore{snap: snap, now: requestcontext.Now}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions = nil
}

// RevisionReady implements revision.Listener. Live captures are snapshotted
// here, at persistence time. When the revision asks for duplicate
// suppression and its version payloads match the previous revision stored
// for the same resource, nothing is appended.
func (s *InMemoryStore) RevisionReady(ctx context.Context, rev revision.Revision) error {
	versions := make([]revision.Snapshot, 0, len(rev.Objects)+len(rev.Snapshots))
	versions = append(versions, rev.Snapshots...)
	for _, obj := range rev.Objects {
		snap, err := s.snap.Snapshot(obj)
		if err != nil {
			return err
		}
		versions = append(versions, snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rev.SuppressDuplicates && s.sameAsLatest(rev.Resource, versions) {
		return nil
	}

	s.revisions = append(s.revisions, StoredRevision{
		ID:        uuid.New(),
		Resource:  rev.Resource,
		Actor:     rev.Actor,
		Comment:   rev.Comment,
		Meta:      append([]any(nil), rev.Meta...),
		CreatedAt: s.now(ctx),
		Versions:  versions,
	})
	return nil
}

// sameAsLatest compares version payloads against the most recent revision
// for resource. Caller holds the lock.
func (s *InMemoryStore) sameAsLatest(resource string, versions []revision.Snapshot) bool {
	var latest *StoredRevision
	for i := len(s.revisions) - 1; i >= 0; i-- {
		if s.revisions[i].Resource == resource {
			latest = &s.revisions[i]
			break
		}
	}
	if latest == nil || len(latest.Versions) != len(versions) {
		return false
	}
	previous := make(map[revision.Key][]byte, len(latest.Versions))
	for _, v := range latest.Versions {
		previous[v.Key] = v.Data
	}
	for _, v := range versions {
		data, ok := previous[v.Key]
		if !ok || !bytes.Equal(data, v.Data) {
			return false
		}
	}
	return true
}

// ListByKey returns every stored revision containing a version for key,
// most recent first.
func (s *InMemoryStore) ListByKey(_ context.Context, key revision.Key) ([]StoredRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []StoredRevision
	for i := len(s.revisions) - 1; i >= 0; i-- {
		for _, v := range s.revisions[i].Versions {
			if v.Key == key {
				matches = append(matches, s.revisions[i])
				break
			}
		}
	}
	return matches, nil
}

// Recent returns the most recent stored revisions, newest first.
func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]StoredRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredRevision
	for i := len(s.revisions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.revisions[i])
	}
	return out, nil
}
