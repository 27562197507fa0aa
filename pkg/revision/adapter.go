package revision

import (
	"fmt"

	strutil "chronicle/pkg/platform/strings"
	"chronicle/pkg/revision/codec"
)

// Adapter is the per-type capture configuration built at registration time.
// Immutable after registration; owned exclusively by its registry.
type Adapter struct {
	fields       []string
	exclude      []string
	follow       []string
	format       string
	concreteKind bool
	deferred     []EventKind
	immediate    []EventKind
}

// RegisterOption overrides a default adapter field at registration time.
type RegisterOption func(*Adapter)

// WithFields restricts serialization to the named fields. The default
// serializes all fields.
func WithFields(fields ...string) RegisterOption {
	return func(a *Adapter) { a.fields = strutil.DedupeAndTrim(fields) }
}

// WithExclude removes the named fields from serialization.
func WithExclude(fields ...string) RegisterOption {
	return func(a *Adapter) { a.exclude = strutil.DedupeAndTrim(fields) }
}

// WithFollow declares relation names to traverse transitively when
// capturing this type. Entities of this type must implement Related.
func WithFollow(relations ...string) RegisterOption {
	return func(a *Adapter) { a.follow = strutil.DedupeAndTrim(relations) }
}

// WithFormat overrides the serialization format identifier recorded on
// snapshots. It does not change the registry codec.
func WithFormat(format string) RegisterOption {
	return func(a *Adapter) { a.format = format }
}

// WithOwnKind files versions under the entity's own kind even when it
// implements ConcreteEntity, giving subtypes their own distinct history.
func WithOwnKind() RegisterOption {
	return func(a *Adapter) { a.concreteKind = false }
}

// WithDeferredEvents replaces the event kinds whose captures are deferred to
// scope close. The default is EventSaved.
func WithDeferredEvents(kinds ...EventKind) RegisterOption {
	return func(a *Adapter) { a.deferred = kinds }
}

// WithImmediateEvents sets the event kinds that snapshot the entity at the
// moment the event fires. Use for events after which the entity may no
// longer exist, such as EventDeleted.
func WithImmediateEvents(kinds ...EventKind) RegisterOption {
	return func(a *Adapter) { a.immediate = kinds }
}

func newAdapter(format string, opts ...RegisterOption) *Adapter {
	a := &Adapter{
		format:       format,
		concreteKind: true,
		deferred:     []EventKind{EventSaved},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Fields returns the explicit field list, nil meaning all fields.
func (a *Adapter) Fields() []string { return append([]string(nil), a.fields...) }

// Exclude returns the excluded field names.
func (a *Adapter) Exclude() []string { return append([]string(nil), a.exclude...) }

// Follow returns the declared relation names.
func (a *Adapter) Follow() []string { return append([]string(nil), a.follow...) }

// Format returns the serialization format identifier.
func (a *Adapter) Format() string { return a.format }

// EventKinds returns every event kind that triggers capture for this type,
// deferred first.
func (a *Adapter) EventKinds() []EventKind {
	kinds := make([]EventKind, 0, len(a.deferred)+len(a.immediate))
	kinds = append(kinds, a.deferred...)
	kinds = append(kinds, a.immediate...)
	return kinds
}

func (a *Adapter) isImmediate(kind EventKind) bool {
	for _, k := range a.immediate {
		if k == kind {
			return true
		}
	}
	return false
}

// KeyFor computes the identity key used to collapse repeated captures of one
// logical entity within a scope.
func (a *Adapter) KeyFor(e Entity) Key {
	kind := e.EntityKind()
	if a.concreteKind {
		if c, ok := e.(ConcreteEntity); ok {
			kind = c.ConcreteEntityKind()
		}
	}
	return Key{Kind: kind, ID: e.EntityID()}
}

// Snapshot serializes the entity's tracked fields with the given codec.
func (a *Adapter) Snapshot(c codec.Codec, e Entity) (Snapshot, error) {
	data, err := c.Encode(e, a.fields, a.exclude)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", a.KeyFor(e), err)
	}
	return Snapshot{
		Key:    a.KeyFor(e),
		Format: a.format,
		Data:   data,
		Repr:   fmt.Sprintf("%v", e),
	}, nil
}
