package revision_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/pkg/revision"
)

type recordingReceiver struct {
	name string
	seen []string
	err  error
}

func (r *recordingReceiver) Receive(_ context.Context, kind revision.EventKind, e revision.Entity) error {
	r.seen = append(r.seen, string(kind)+":"+e.EntityID())
	return r.err
}

func TestDispatchRoutesByTypeAndKind(t *testing.T) {
	d := revision.NewDispatcher()
	ctx := context.Background()

	invoices := &recordingReceiver{name: "invoices"}
	customers := &recordingReceiver{name: "customers"}
	d.Subscribe(&invoice{}, revision.EventSaved, invoices)
	d.Subscribe(&customer{}, revision.EventSaved, customers)

	require.NoError(t, d.Dispatch(ctx, revision.EventSaved, &invoice{ID: "inv-1"}))
	require.NoError(t, d.Dispatch(ctx, revision.EventSaved, &customer{ID: "cust-1"}))

	assert.Equal(t, []string{"saved:inv-1"}, invoices.seen)
	assert.Equal(t, []string{"saved:cust-1"}, customers.seen)

	// A kind nobody subscribed to is a no-op.
	require.NoError(t, d.Dispatch(ctx, revision.EventDeleted, &invoice{ID: "inv-1"}))
	assert.Len(t, invoices.seen, 1)
}

func TestDispatchOrderAndFirstError(t *testing.T) {
	d := revision.NewDispatcher()
	boom := errors.New("boom")

	first := &recordingReceiver{name: "first"}
	failing := &recordingReceiver{name: "failing", err: boom}
	last := &recordingReceiver{name: "last"}
	d.Subscribe(&invoice{}, revision.EventSaved, first)
	d.Subscribe(&invoice{}, revision.EventSaved, failing)
	d.Subscribe(&invoice{}, revision.EventSaved, last)

	err := d.Dispatch(context.Background(), revision.EventSaved, &invoice{ID: "inv-1"})
	require.ErrorIs(t, err, boom)

	assert.Len(t, first.seen, 1)
	assert.Len(t, failing.seen, 1)
	assert.Empty(t, last.seen, "dispatch stops at the first receiver error")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := revision.NewDispatcher()
	ctx := context.Background()

	r := &recordingReceiver{}
	d.Subscribe(&invoice{}, revision.EventSaved, r)
	require.NoError(t, d.Dispatch(ctx, revision.EventSaved, &invoice{ID: "inv-1"}))

	d.Unsubscribe(&invoice{}, revision.EventSaved, r)
	require.NoError(t, d.Dispatch(ctx, revision.EventSaved, &invoice{ID: "inv-2"}))

	assert.Equal(t, []string{"saved:inv-1"}, r.seen)

	// Unsubscribing something never subscribed is a no-op.
	d.Unsubscribe(&customer{}, revision.EventSaved, r)
}
