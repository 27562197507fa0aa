package publish

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	rev "chronicle/pkg/revision"
)

// RedisSink appends revision payloads to a Redis stream, for consumers that
// tail revision activity without touching the revision store.
type RedisSink struct {
	client *redis.Client
	stream string
	snap   Snapshotter
}

// NewRedisSink publishes to the named stream on client.
func NewRedisSink(client *redis.Client, stream string, snap Snapshotter) *RedisSink {
	return &RedisSink{client: client, stream: stream, snap: snap}
}

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, r rev.Revision) error {
	payload, err := Encode(r, s.snap)
	if err != nil {
		return err
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"resource": r.Resource,
			"payload":  payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd revision to %s: %w", s.stream, err)
	}
	return nil
}
