package publish

import (
	"context"
	"log/slog"
	"sync"

	"chronicle/pkg/revision"
)

// Publisher bridges emitted revisions to a sink. In sync mode (the default)
// delivery happens inside the closing scope, so a sink failure rolls the
// scope's transaction back. With an async buffer, revisions are handed to a
// background worker instead: the scope never blocks on delivery, a full
// buffer drops the revision with a log line, and Close drains what was
// buffered.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	ch        chan revision.Revision
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// channel capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.ch = make(chan revision.Revision, size)
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher wires a sink behind a revision listener.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.ch != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for rev := range p.ch {
		// Scope context is gone by delivery time; the worker owns its own.
		if err := p.sink.Deliver(context.Background(), rev); err != nil {
			p.logger.Error("deliver revision", "resource", rev.Resource, "error", err)
		}
	}
}

// RevisionReady implements revision.Listener.
func (p *Publisher) RevisionReady(ctx context.Context, rev revision.Revision) error {
	if p.ch == nil {
		return p.sink.Deliver(ctx, rev)
	}
	select {
	case p.ch <- rev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn("revision buffer full, dropping", "resource", rev.Resource)
		return nil
	}
}

// Close stops the async worker after draining buffered revisions. No-op in
// sync mode; safe to call more than once.
func (p *Publisher) Close() {
	if p.ch == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.ch)
	})
	p.wg.Wait()
}
