package revision

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"chronicle/pkg/revision/codec"
)

// Process-wide slug table. A slug is claimed by at most one live registry;
// Close releases it explicitly rather than relying on finalization.
var (
	registriesMu sync.Mutex
	registries   = make(map[string]*Registry)
)

// Registry owns the adapters for a set of tracked entity types, subscribes
// to their change events, and routes triggered entities into the scope on
// the calling context. Registration and unregistration are expected at
// startup and shutdown; the adapter map sees only reads under steady-state
// load.
type Registry struct {
	slug       string
	dispatcher *Dispatcher
	codec      codec.Codec
	logger     *slog.Logger

	mu        sync.RWMutex
	adapters  map[reflect.Type]*Adapter
	listeners []Listener
	closed    bool
}

// RegistryOption configures a registry at construction time.
type RegistryOption func(*Registry)

// WithCodec replaces the default JSON codec used for eager snapshots.
func WithCodec(c codec.Codec) RegistryOption {
	return func(r *Registry) { r.codec = c }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// New creates a registry and claims slug process-wide. Fails with
// ErrSlugTaken when another live registry holds the slug.
func New(slug string, dispatcher *Dispatcher, opts ...RegistryOption) (*Registry, error) {
	if slug == "" {
		return nil, fmt.Errorf("registry slug is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("registry dispatcher is required")
	}

	r := &Registry{
		slug:       slug,
		dispatcher: dispatcher,
		codec:      codec.JSON{},
		logger:     slog.Default(),
		adapters:   make(map[reflect.Type]*Adapter),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	registriesMu.Lock()
	defer registriesMu.Unlock()
	if _, taken := registries[slug]; taken {
		return nil, fmt.Errorf("%w: %q", ErrSlugTaken, slug)
	}
	registries[slug] = r
	return r, nil
}

// Lookup returns the live registry claiming slug.
func Lookup(slug string) (*Registry, error) {
	registriesMu.Lock()
	defer registriesMu.Unlock()
	if r, ok := registries[slug]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRegistry, slug)
}

// Slug returns the registry's process-wide slug.
func (r *Registry) Slug() string {
	return r.slug
}

// Close unregisters every type and releases the slug. Idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	types := make([]reflect.Type, 0, len(r.adapters))
	for typ := range r.adapters {
		types = append(types, typ)
	}
	r.mu.Unlock()

	for _, typ := range types {
		if err := r.unregisterType(typ); err != nil {
			return err
		}
	}

	registriesMu.Lock()
	defer registriesMu.Unlock()
	if registries[r.slug] == r {
		delete(registries, r.slug)
	}
	return nil
}

// Register adds sample's type to the registry, building its adapter from
// defaults plus the given overrides and subscribing the registry to every
// event kind the adapter declares. Double registration is a configuration
// error.
func (r *Registry) Register(sample Entity, opts ...RegisterOption) error {
	typ := entityType(sample)
	adapter := newAdapter(r.codec.Format(), opts...)

	r.mu.Lock()
	if _, dup := r.adapters[typ]; dup {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s with registry %q", ErrAlreadyRegistered, typ, r.slug)
	}
	r.adapters[typ] = adapter
	r.mu.Unlock()

	for _, kind := range adapter.EventKinds() {
		r.dispatcher.Subscribe(sample, kind, r)
	}
	return nil
}

// Unregister removes sample's type from the registry and reverses its event
// subscriptions. Errors when the type was never registered.
func (r *Registry) Unregister(sample Entity) error {
	return r.unregisterType(entityType(sample))
}

func (r *Registry) unregisterType(typ reflect.Type) error {
	r.mu.Lock()
	adapter, ok := r.adapters[typ]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s with registry %q", ErrNotRegistered, typ, r.slug)
	}
	delete(r.adapters, typ)
	r.mu.Unlock()

	sample := reflect.New(typ).Interface().(Entity)
	for _, kind := range adapter.EventKinds() {
		r.dispatcher.Unsubscribe(sample, kind, r)
	}
	return nil
}

// IsRegistered reports whether sample's type is registered.
func (r *Registry) IsRegistered(sample Entity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[entityType(sample)]
	return ok
}

// Adapter returns the adapter for sample's type.
func (r *Registry) Adapter(sample Entity) (*Adapter, error) {
	return r.adapterFor(sample)
}

func (r *Registry) adapterFor(e Entity) (*Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if adapter, ok := r.adapters[entityType(e)]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("%w: %s with registry %q", ErrNotRegistered, entityType(e), r.slug)
}

// Registered returns the types currently registered, in no particular
// order.
func (r *Registry) Registered() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]reflect.Type, 0, len(r.adapters))
	for typ := range r.adapters {
		types = append(types, typ)
	}
	return types
}

// Snapshot serializes an entity with its adapter and the registry codec.
// Storage collaborators use this at emission time to snapshot live
// captures.
func (r *Registry) Snapshot(e Entity) (Snapshot, error) {
	adapter, err := r.adapterFor(e)
	if err != nil {
		return Snapshot{}, err
	}
	return adapter.Snapshot(r.codec, e)
}

// Receive implements Receiver: it is the dispatcher callback invoked inside
// each tracked mutation. With no open scope, or a scope under manual
// management, the event is ignored. Immediate event kinds snapshot eagerly;
// everything else defers capture to scope close.
func (r *Registry) Receive(ctx context.Context, kind EventKind, e Entity) error {
	t, ok := TrackerFrom(ctx)
	if !ok || !t.IsActive() {
		return nil
	}
	manual, err := t.IsManagingManually()
	if err != nil {
		return nil
	}
	if manual {
		return nil
	}

	adapter, err := r.adapterFor(e)
	if err != nil {
		return err
	}
	if adapter.isImmediate(kind) {
		return t.AddCaptureEager(r, e)
	}
	return t.AddCapture(r, e)
}

// FollowRelationships walks the declared relations depth-first from root
// and returns each reachable entity exactly once, root included. Entity
// identity keys guard against cycles; an entity with no persisted identity
// terminates its branch.
func (r *Registry) FollowRelationships(root Entity) ([]Entity, error) {
	visited := make(map[Key]struct{})
	var reachable []Entity

	var follow func(e Entity) error
	follow = func(e Entity) error {
		if e == nil || e.EntityID() == "" {
			return nil
		}
		adapter, err := r.adapterFor(e)
		if err != nil {
			return err
		}
		key := adapter.KeyFor(e)
		if _, seen := visited[key]; seen {
			return nil
		}
		visited[key] = struct{}{}
		reachable = append(reachable, e)

		if len(adapter.follow) == 0 {
			return nil
		}
		related, ok := e.(Related)
		if !ok {
			return fmt.Errorf("%w: %s declares followed relations but %T does not implement Related",
				ErrBadRelation, key.Kind, e)
		}
		for _, name := range adapter.follow {
			rel, err := related.Relation(name)
			if err != nil {
				return fmt.Errorf("%w: relation %q on %s: %v", ErrBadRelation, name, key.Kind, err)
			}
			for _, next := range rel.Entities() {
				if err := follow(next); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := follow(root); err != nil {
		return nil, err
	}
	return reachable, nil
}

// SubscribeRevisions adds a listener for revisions emitted through this
// registry.
func (r *Registry) SubscribeRevisions(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// UnsubscribeRevisions removes a previously subscribed listener.
func (r *Registry) UnsubscribeRevisions(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *Registry) notifyRevision(ctx context.Context, rev Revision) error {
	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.RUnlock()

	for _, l := range listeners {
		if err := l.RevisionReady(ctx, rev); err != nil {
			return err
		}
	}
	return nil
}
