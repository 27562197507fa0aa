package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chronicle/pkg/platform/txn"
	"chronicle/pkg/requestcontext"
	"chronicle/pkg/revision"
)

// Schema creates the revision tables. Applied by EnsureSchema; kept
// exported so migration tooling can embed it instead.
const Schema = `
CREATE TABLE IF NOT EXISTS revisions (
	id UUID PRIMARY KEY,
	resource TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	comment TEXT NOT NULL DEFAULT '',
	meta JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
	id UUID PRIMARY KEY,
	revision_id UUID NOT NULL REFERENCES revisions(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	object_id TEXT NOT NULL,
	format TEXT NOT NULL,
	data JSONB NOT NULL,
	repr TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS versions_kind_object_idx ON versions (kind, object_id);
CREATE INDEX IF NOT EXISTS revisions_resource_created_idx ON revisions (resource, created_at DESC);
`

// Snapshotter serializes a live entity at persistence time. The registry
// that emitted the revision satisfies this.
type Snapshotter interface {
	Snapshot(e revision.Entity) (revision.Snapshot, error)
}

// Store persists emitted revisions to PostgreSQL. It subscribes to a
// registry as a revision listener and joins the emitting scope's
// transaction when one is open on the context, so a revision commits or
// rolls back atomically with the mutations it records.
type Store struct {
	db   *sql.DB
	snap Snapshotter
	now  func(ctx context.Context) time.Time
}

// New creates a PostgreSQL revision store. Revisions are stamped with the
// request-pinned time when one is on the context, so a revision row agrees
// with every other timestamp recorded while handling the same request.
func New(db *sql.DB, snap Snapshotter) *Store {
	return &Store{db: db, snap: snap, now: requestcontext.Now}
}

// EnsureSchema applies the revision schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply revision schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context, resource string) dbExecutor {
	if tx, ok := txn.From(ctx, resource); ok {
		if wrapped, ok := tx.(interface{ Unwrap() *sql.Tx }); ok {
			return wrapped.Unwrap()
		}
	}
	return s.db
}

// RevisionReady implements revision.Listener.
func (s *Store) RevisionReady(ctx context.Context, rev revision.Revision) error {
	versions := make([]revision.Snapshot, 0, len(rev.Objects)+len(rev.Snapshots))
	versions = append(versions, rev.Snapshots...)
	for _, obj := range rev.Objects {
		snap, err := s.snap.Snapshot(obj)
		if err != nil {
			return err
		}
		versions = append(versions, snap)
	}

	exec := s.execer(ctx, rev.Resource)

	if rev.SuppressDuplicates {
		same, err := s.sameAsLatest(ctx, exec, rev.Resource, versions)
		if err != nil {
			return err
		}
		if same {
			return nil
		}
	}

	meta, err := json.Marshal(rev.Meta)
	if err != nil {
		return fmt.Errorf("marshal revision meta: %w", err)
	}

	revisionID := uuid.New()
	_, err = exec.ExecContext(ctx, `
		INSERT INTO revisions (id, resource, actor, comment, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		revisionID,
		rev.Resource,
		actorText(rev.Actor),
		rev.Comment,
		meta,
		s.now(ctx),
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}

	for _, v := range versions {
		_, err = exec.ExecContext(ctx, `
			INSERT INTO versions (id, revision_id, kind, object_id, format, data, repr)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			uuid.New(),
			revisionID,
			v.Key.Kind,
			v.Key.ID,
			v.Format,
			v.Data,
			v.Repr,
		)
		if err != nil {
			return fmt.Errorf("insert version %s: %w", v.Key, err)
		}
	}
	return nil
}

func actorText(actor any) string {
	if actor == nil {
		return ""
	}
	return fmt.Sprintf("%v", actor)
}

// sameAsLatest compares version payloads against the most recent revision
// stored for resource.
func (s *Store) sameAsLatest(ctx context.Context, exec dbExecutor, resource string, versions []revision.Snapshot) (bool, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT v.kind, v.object_id, v.data
		FROM versions v
		WHERE v.revision_id = (
			SELECT id FROM revisions
			WHERE resource = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
	`, resource)
	if err != nil {
		return false, fmt.Errorf("query latest revision: %w", err)
	}
	defer rows.Close()

	previous := make(map[revision.Key][]byte)
	for rows.Next() {
		var key revision.Key
		var data []byte
		if err := rows.Scan(&key.Kind, &key.ID, &data); err != nil {
			return false, fmt.Errorf("scan latest version: %w", err)
		}
		previous[key] = data
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate latest versions: %w", err)
	}

	if len(previous) != len(versions) {
		return false, nil
	}
	for _, v := range versions {
		data, ok := previous[v.Key]
		if !ok || !jsonEqual(data, v.Data) {
			return false, nil
		}
	}
	return true, nil
}

// jsonEqual compares payloads structurally; JSONB normalizes key order so a
// byte comparison of the stored form against a fresh encoding can differ.
func jsonEqual(a, b []byte) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	ac, err := json.Marshal(av)
	if err != nil {
		return false
	}
	bc, err := json.Marshal(bv)
	if err != nil {
		return false
	}
	return bytes.Equal(ac, bc)
}

// ListByKey returns every stored revision containing a version for key,
// most recent first.
func (s *Store) ListByKey(ctx context.Context, key revision.Key) ([]StoredRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.resource, r.actor, r.comment, r.created_at,
		       v.kind, v.object_id, v.format, v.data, v.repr
		FROM revisions r
		JOIN versions v ON v.revision_id = r.id
		WHERE r.id IN (
			SELECT revision_id FROM versions WHERE kind = $1 AND object_id = $2
		)
		ORDER BY r.created_at DESC, r.id DESC
	`, key.Kind, key.ID)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	return scanRevisions(rows)
}

// Recent returns the most recent stored revisions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]StoredRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.resource, r.actor, r.comment, r.created_at,
		       v.kind, v.object_id, v.format, v.data, v.repr
		FROM revisions r
		JOIN versions v ON v.revision_id = r.id
		WHERE r.id IN (
			SELECT id FROM revisions ORDER BY created_at DESC, id DESC LIMIT $1
		)
		ORDER BY r.created_at DESC, r.id DESC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent revisions: %w", err)
	}
	defer rows.Close()

	return scanRevisions(rows)
}

// StoredRevision is one persisted revision with its version snapshots.
type StoredRevision struct {
	ID        uuid.UUID
	Resource  string
	Actor     string
	Comment   string
	CreatedAt time.Time
	Versions  []revision.Snapshot
}

func scanRevisions(rows *sql.Rows) ([]StoredRevision, error) {
	var out []StoredRevision
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var (
			id        uuid.UUID
			resource  string
			actor     string
			comment   string
			createdAt time.Time
			v         revision.Snapshot
		)
		err := rows.Scan(&id, &resource, &actor, &comment, &createdAt,
			&v.Key.Kind, &v.Key.ID, &v.Format, &v.Data, &v.Repr)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}

		i, ok := index[id]
		if !ok {
			out = append(out, StoredRevision{
				ID:        id,
				Resource:  resource,
				Actor:     actor,
				Comment:   comment,
				CreatedAt: createdAt,
			})
			i = len(out) - 1
			index[id] = i
		}
		out[i].Versions = append(out[i].Versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return out, nil
}
