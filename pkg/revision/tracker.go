package revision

import (
	"context"
	"fmt"

	"chronicle/pkg/revision/metrics"
)

// Tracker owns the scope stack and per-resource open counts for one
// execution unit. It is carried through context.Context by the scope API and
// must not be shared between goroutines that mutate tracked entities
// concurrently: each concurrent unit of work gets its own Tracker, so no
// locking is needed on the stack.
type Tracker struct {
	stack   []*frame
	depths  map[string]int
	metrics *metrics.Metrics
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithMetrics attaches scope metrics to the tracker.
func WithMetrics(m *metrics.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker returns an empty tracker. Most callers never construct one
// directly; InScope creates a tracker lazily when the context has none.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{depths: make(map[string]int)}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// IsActive reports whether any scope is open on this tracker.
func (t *Tracker) IsActive() bool {
	return len(t.stack) > 0
}

// Depth returns the number of currently open nested scopes.
func (t *Tracker) Depth() int {
	return len(t.stack)
}

func (t *Tracker) current() (*frame, error) {
	if len(t.stack) == 0 {
		return nil, ErrNoActiveScope
	}
	return t.stack[len(t.stack)-1], nil
}

// start pushes a frame for a new scope: a fork of the current top when one
// exists, otherwise a fresh root frame.
func (t *Tracker) start(manageManually bool, resource string) {
	if top, err := t.current(); err == nil {
		t.stack = append(t.stack, top.fork(manageManually))
	} else {
		t.stack = append(t.stack, newFrame(manageManually))
	}
	t.depths[resource]++
	if t.metrics != nil {
		t.metrics.SetOpenDepth(len(t.stack))
	}
}

// end closes the current scope for resource. When this was the last open
// scope for that resource and the frame was not invalidated, the accumulated
// object sets are emitted before the frame is popped. The frame is popped
// unconditionally and, if a parent remains, joined into it.
func (t *Tracker) end(ctx context.Context, resource string) error {
	f, err := t.current()
	if err != nil {
		return err
	}

	t.depths[resource]--
	remaining := t.depths[resource]
	if remaining <= 0 {
		delete(t.depths, resource)
	}

	var emitErr error
	if remaining == 0 && !f.invalid {
		emitErr = t.emit(ctx, f, resource)
	}

	t.stack = t.stack[:len(t.stack)-1]
	if len(t.stack) > 0 {
		t.stack[len(t.stack)-1].join(f)
	}
	if t.metrics != nil {
		t.metrics.SetOpenDepth(len(t.stack))
	}
	return emitErr
}

func (t *Tracker) emit(ctx context.Context, f *frame, resource string) error {
	for reg, set := range f.objects {
		if len(set) == 0 {
			continue
		}
		rev := Revision{
			Actor:              f.actor,
			Comment:            f.comment,
			Meta:               append([]any(nil), f.meta...),
			SuppressDuplicates: f.suppressDuplicates,
			Resource:           resource,
		}
		for _, cap := range set {
			if cap.snapshot != nil {
				rev.Snapshots = append(rev.Snapshots, *cap.snapshot)
			} else {
				rev.Objects = append(rev.Objects, cap.entity)
			}
		}
		if err := reg.notifyRevision(ctx, rev); err != nil {
			return fmt.Errorf("emit revision for registry %q: %w", reg.Slug(), err)
		}
		if t.metrics != nil {
			t.metrics.RevisionEmitted()
		}
	}
	return nil
}

// Invalidate marks the current scope as failed so that no revision is
// emitted for it. Idempotent.
func (t *Tracker) Invalidate() error {
	f, err := t.current()
	if err != nil {
		return err
	}
	if !f.invalid && t.metrics != nil {
		t.metrics.ScopeInvalidated()
	}
	f.invalid = true
	return nil
}

// IsInvalid reports whether the current scope has been invalidated.
func (t *Tracker) IsInvalid() (bool, error) {
	f, err := t.current()
	if err != nil {
		return false, err
	}
	return f.invalid, nil
}

// IsManagingManually reports whether the current scope has manual
// management enabled, suppressing automatic capture from change events.
func (t *Tracker) IsManagingManually() (bool, error) {
	f, err := t.current()
	if err != nil {
		return false, err
	}
	return f.manageManually, nil
}

// SetManagingManually toggles manual management for the current scope only;
// the flag is block-scoped and does not propagate to nested scopes.
func (t *Tracker) SetManagingManually(manual bool) error {
	f, err := t.current()
	if err != nil {
		return err
	}
	f.manageManually = manual
	return nil
}

// Actor returns the revision actor set on the current scope.
func (t *Tracker) Actor() (any, error) {
	f, err := t.current()
	if err != nil {
		return nil, err
	}
	return f.actor, nil
}

// SetActor records who is responsible for the revision.
func (t *Tracker) SetActor(actor any) error {
	f, err := t.current()
	if err != nil {
		return err
	}
	f.actor = actor
	return nil
}

// Comment returns the revision comment set on the current scope.
func (t *Tracker) Comment() (string, error) {
	f, err := t.current()
	if err != nil {
		return "", err
	}
	return f.comment, nil
}

// SetComment records a comment for the revision.
func (t *Tracker) SetComment(comment string) error {
	f, err := t.current()
	if err != nil {
		return err
	}
	f.comment = comment
	return nil
}

// SuppressDuplicates returns the duplicate-suppression flag for the
// revision.
func (t *Tracker) SuppressDuplicates() (bool, error) {
	f, err := t.current()
	if err != nil {
		return false, err
	}
	return f.suppressDuplicates, nil
}

// SetSuppressDuplicates asks the storage collaborator to skip persisting
// this revision when it matches the previous one. The core only threads the
// flag through.
func (t *Tracker) SetSuppressDuplicates(suppress bool) error {
	f, err := t.current()
	if err != nil {
		return err
	}
	f.suppressDuplicates = suppress
	return nil
}

// AddMeta appends an arbitrary metadata record to the revision. Append
// order is preserved through forks and joins.
func (t *Tracker) AddMeta(record any) error {
	f, err := t.current()
	if err != nil {
		return err
	}
	f.meta = append(f.meta, record)
	return nil
}

// AddCapture records a live entity into the current scope's object set for
// reg. Re-capturing the same logical entity overwrites the earlier entry,
// so a scope holds at most one capture per entity.
func (t *Tracker) AddCapture(reg *Registry, e Entity) error {
	f, err := t.current()
	if err != nil {
		return err
	}
	adapter, err := reg.adapterFor(e)
	if err != nil {
		return err
	}
	f.setFor(reg, adapter.KeyFor(e), capture{entity: e})
	if t.metrics != nil {
		t.metrics.EntityCaptured()
	}
	return nil
}

// AddCaptureEager expands the entity's transitive followed relations and
// records a pre-serialized snapshot of each reachable entity immediately,
// for events after which the entity may no longer exist.
func (t *Tracker) AddCaptureEager(reg *Registry, e Entity) error {
	f, err := t.current()
	if err != nil {
		return err
	}
	reachable, err := reg.FollowRelationships(e)
	if err != nil {
		return err
	}
	for _, related := range reachable {
		adapter, err := reg.adapterFor(related)
		if err != nil {
			return err
		}
		snap, err := adapter.Snapshot(reg.codec, related)
		if err != nil {
			return err
		}
		f.setFor(reg, snap.Key, capture{snapshot: &snap})
		if t.metrics != nil {
			t.metrics.EntityCaptured()
		}
	}
	return nil
}
