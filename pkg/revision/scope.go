package revision

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chronicle/pkg/platform/txn"
)

var tracer = otel.Tracer("chronicle/pkg/revision")

// ScopeOption configures one scope invocation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	manageManually bool
}

// ManageManually opens the scope with automatic capture disabled: change
// events are ignored and only explicit capture calls record entities.
func ManageManually() ScopeOption {
	return func(c *scopeConfig) { c.manageManually = true }
}

// InScope runs fn inside a revision scope wrapped in a transaction on res.
// Nesting composes with call-stack nesting: when the context already
// carries an open scope, the new scope forks it and the transaction becomes
// a savepoint. When the outermost scope for res closes cleanly, the
// accumulated captures are emitted as one revision before the transaction
// commits.
//
// An error or panic from fn invalidates the scope (nothing is emitted for
// it), rolls the transaction back, and propagates unchanged.
func InScope(ctx context.Context, res txn.Resource, fn func(ctx context.Context) error, opts ...ScopeOption) error {
	var cfg scopeConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	trk, ok := TrackerFrom(ctx)
	if !ok {
		trk = NewTracker()
		ctx = WithTracker(ctx, trk)
	}

	resource := res.Name()
	var tx txn.Tx
	var err error
	if parent, open := txn.From(ctx, resource); open {
		tx, err = parent.Begin(ctx)
	} else {
		tx, err = res.Begin(ctx)
	}
	if err != nil {
		return err
	}
	ctx = txn.WithTx(ctx, resource, tx)

	trk.start(cfg.manageManually, resource)

	ctx, span := tracer.Start(ctx, "revision.scope", trace.WithAttributes(
		attribute.String("revision.resource", resource),
		attribute.Int("revision.depth", trk.Depth()),
	))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			_ = trk.Invalidate()
			_ = trk.end(ctx, resource)
			_ = tx.Rollback(ctx)
			span.SetStatus(codes.Error, "panic")
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		_ = trk.Invalidate()
		// An invalidated frame emits nothing, so end cannot fail here.
		_ = trk.end(ctx, resource)
		_ = tx.Rollback(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := trk.end(ctx, resource); err != nil {
		_ = tx.Rollback(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return tx.Commit(ctx)
}

// Wrap returns a reusable decorator running fn in a scope on each call.
func Wrap(res txn.Resource, fn func(ctx context.Context) error, opts ...ScopeOption) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return InScope(ctx, res, fn, opts...)
	}
}
