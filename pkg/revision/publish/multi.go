package publish

import (
	"context"

	"golang.org/x/sync/errgroup"

	"chronicle/pkg/revision"
)

// MultiSink delivers each revision to several sinks in parallel, failing on
// the first sink error with shared cancellation.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink fans deliveries out to the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Deliver implements Sink.
func (m *MultiSink) Deliver(ctx context.Context, rev revision.Revision) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		g.Go(func() error {
			return sink.Deliver(ctx, rev)
		})
	}
	return g.Wait()
}
