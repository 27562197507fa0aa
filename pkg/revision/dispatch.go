package revision

import (
	"context"
	"reflect"
	"sync"
)

// Receiver handles a change event for an entity. Receivers run
// synchronously inside the mutation's own call; a receiver error surfaces
// to whoever performed the mutation.
type Receiver interface {
	Receive(ctx context.Context, kind EventKind, e Entity) error
}

type subKey struct {
	typ  reflect.Type
	kind EventKind
}

// Dispatcher routes change events to subscribed receivers, keyed by entity
// type and event kind. Persistence layers call Dispatch after each tracked
// mutation; registries subscribe their receivers at registration time.
//
// Subscription mutations are expected at startup and shutdown, not under
// steady-state dispatch load.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[subKey][]Receiver
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[subKey][]Receiver)}
}

// Subscribe registers r for events of the sample's type and the given kind.
func (d *Dispatcher) Subscribe(sample Entity, kind EventKind, r Receiver) {
	key := subKey{typ: entityType(sample), kind: kind}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[key] = append(d.subs[key], r)
}

// Unsubscribe removes r from the sample's type and kind. Removing a
// receiver that was never subscribed is a no-op.
func (d *Dispatcher) Unsubscribe(sample Entity, kind EventKind, r Receiver) {
	key := subKey{typ: entityType(sample), kind: kind}
	d.mu.Lock()
	defer d.mu.Unlock()
	receivers := d.subs[key]
	for i, existing := range receivers {
		if existing == r {
			d.subs[key] = append(receivers[:i:i], receivers[i+1:]...)
			break
		}
	}
	if len(d.subs[key]) == 0 {
		delete(d.subs, key)
	}
}

// Dispatch delivers the event to every receiver subscribed for the entity's
// type and kind, in subscription order, stopping at the first error.
func (d *Dispatcher) Dispatch(ctx context.Context, kind EventKind, e Entity) error {
	key := subKey{typ: entityType(e), kind: kind}
	d.mu.RLock()
	receivers := append([]Receiver(nil), d.subs[key]...)
	d.mu.RUnlock()

	for _, r := range receivers {
		if err := r.Receive(ctx, kind, e); err != nil {
			return err
		}
	}
	return nil
}

// entityType normalizes pointer-ness so registration and dispatch agree on
// the registry key regardless of how the entity is passed.
func entityType(e Entity) reflect.Type {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
