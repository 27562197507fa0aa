package revision

import "context"

// EventKind names a class of change event a tracked entity can emit.
type EventKind string

const (
	// EventCreated fires after an entity is first persisted.
	EventCreated EventKind = "created"

	// EventSaved fires after an entity is persisted (create or update).
	// This is the default deferred trigger for registered types.
	EventSaved EventKind = "saved"

	// EventDeleted fires just before an entity is removed. Typically
	// configured as an immediate trigger, since the entity no longer
	// exists by the time the scope closes.
	EventDeleted EventKind = "deleted"
)

// Entity is anything whose history can be tracked. EntityID returns the
// persisted identity, or "" for an entity that was never saved.
type Entity interface {
	EntityKind() string
	EntityID() string
}

// ConcreteEntity is implemented by entity types that share storage with a
// base type (proxy or subtype hierarchies). When an adapter keeps its
// use-concrete-kind flag set (the default), versions of such entities are
// filed under the concrete kind so the whole hierarchy shares one history.
type ConcreteEntity interface {
	Entity
	ConcreteEntityKind() string
}

// Key uniquely identifies an entity within a registry's object set.
type Key struct {
	Kind string
	ID   string
}

func (k Key) String() string {
	return k.Kind + ":" + k.ID
}

// Snapshot is a pre-serialized capture of an entity's tracked fields,
// taken either eagerly at event time or by a store at emission time.
type Snapshot struct {
	Key    Key
	Format string
	Data   []byte
	Repr   string
}

// Revision is the emission payload delivered to revision listeners when the
// outermost scope for a transactional resource closes cleanly. Objects holds
// live entity references captured by deferred events; Snapshots holds
// pre-serialized captures from immediate events.
type Revision struct {
	Objects            []Entity
	Snapshots          []Snapshot
	Actor              any
	Comment            string
	Meta               []any
	SuppressDuplicates bool
	Resource           string
}

// Listener receives emitted revisions. Listeners run synchronously inside
// the closing scope, before its transaction commits; a listener error
// propagates to the scope caller and rolls the transaction back.
type Listener interface {
	RevisionReady(ctx context.Context, rev Revision) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, rev Revision) error

func (f ListenerFunc) RevisionReady(ctx context.Context, rev Revision) error {
	return f(ctx, rev)
}
