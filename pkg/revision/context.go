package revision

import "context"

type trackerKey struct{}

// WithTracker stores a tracker in context for downstream scope usage.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFrom extracts the tracker from context if present.
func TrackerFrom(ctx context.Context) (*Tracker, bool) {
	t, ok := ctx.Value(trackerKey{}).(*Tracker)
	return t, ok
}

func trackerOrErr(ctx context.Context) (*Tracker, error) {
	t, ok := TrackerFrom(ctx)
	if !ok || !t.IsActive() {
		return nil, ErrNoActiveScope
	}
	return t, nil
}

// IsActive reports whether a revision scope is open on the calling context.
func IsActive(ctx context.Context) bool {
	t, ok := TrackerFrom(ctx)
	return ok && t.IsActive()
}

// SetActor records the actor on the current scope. Fails with
// ErrNoActiveScope outside any open scope, as do all accessors below.
func SetActor(ctx context.Context, actor any) error {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return err
	}
	return t.SetActor(actor)
}

// Actor returns the actor recorded on the current scope.
func Actor(ctx context.Context) (any, error) {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return nil, err
	}
	return t.Actor()
}

// SetComment records the revision comment on the current scope.
func SetComment(ctx context.Context, comment string) error {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return err
	}
	return t.SetComment(comment)
}

// Comment returns the revision comment on the current scope.
func Comment(ctx context.Context) (string, error) {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return "", err
	}
	return t.Comment()
}

// SetSuppressDuplicates sets the duplicate-suppression flag on the current
// scope.
func SetSuppressDuplicates(ctx context.Context, suppress bool) error {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return err
	}
	return t.SetSuppressDuplicates(suppress)
}

// SuppressDuplicates returns the duplicate-suppression flag on the current
// scope.
func SuppressDuplicates(ctx context.Context) (bool, error) {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return false, err
	}
	return t.SuppressDuplicates()
}

// AddMeta appends a metadata record to the current scope's revision.
func AddMeta(ctx context.Context, record any) error {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return err
	}
	return t.AddMeta(record)
}

// Invalidate marks the current scope as failed.
func Invalidate(ctx context.Context) error {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return err
	}
	return t.Invalidate()
}

// IsInvalid reports whether the current scope has been invalidated.
func IsInvalid(ctx context.Context) (bool, error) {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return false, err
	}
	return t.IsInvalid()
}

// IsManagingManually reports whether the current scope suppresses automatic
// capture.
func IsManagingManually(ctx context.Context) (bool, error) {
	t, err := trackerOrErr(ctx)
	if err != nil {
		return false, err
	}
	return t.IsManagingManually()
}
