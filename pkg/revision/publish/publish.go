// Package publish fans emitted revisions out to delivery sinks (revision
// stores, streams, message brokers). A Publisher subscribes to a registry
// as a revision listener and delivers synchronously, or asynchronously
// through a buffered channel drained on Close.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chronicle/pkg/revision"
)

// Sink delivers one revision to a destination.
type Sink interface {
	Deliver(ctx context.Context, rev revision.Revision) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rev revision.Revision) error

func (f SinkFunc) Deliver(ctx context.Context, rev revision.Revision) error {
	return f(ctx, rev)
}

// Snapshotter serializes a live entity for the wire. The registry that
// emitted the revision satisfies this.
type Snapshotter interface {
	Snapshot(e revision.Entity) (revision.Snapshot, error)
}

type wireVersion struct {
	Kind     string          `json:"kind"`
	ObjectID string          `json:"object_id"`
	Format   string          `json:"format"`
	Data     json.RawMessage `json:"data"`
	Repr     string          `json:"repr,omitempty"`
}

type wirePayload struct {
	ID                 string        `json:"id"`
	Resource           string        `json:"resource"`
	Actor              string        `json:"actor,omitempty"`
	Comment            string        `json:"comment,omitempty"`
	SuppressDuplicates bool          `json:"suppress_duplicates,omitempty"`
	Timestamp          string        `json:"timestamp"`
	Versions           []wireVersion `json:"versions"`
	Meta               []any         `json:"meta,omitempty"`
}

// Encode builds the JSON wire payload for a revision, snapshotting live
// captures with snap. Each call mints a fresh payload id.
func Encode(rev revision.Revision, snap Snapshotter) ([]byte, error) {
	payload := wirePayload{
		ID:                 uuid.NewString(),
		Resource:           rev.Resource,
		Comment:            rev.Comment,
		SuppressDuplicates: rev.SuppressDuplicates,
		Timestamp:          time.Now().Format(time.RFC3339Nano),
		Meta:               rev.Meta,
	}
	if rev.Actor != nil {
		payload.Actor = fmt.Sprintf("%v", rev.Actor)
	}

	versions := make([]revision.Snapshot, 0, len(rev.Objects)+len(rev.Snapshots))
	versions = append(versions, rev.Snapshots...)
	for _, obj := range rev.Objects {
		s, err := snap.Snapshot(obj)
		if err != nil {
			return nil, err
		}
		versions = append(versions, s)
	}
	for _, v := range versions {
		payload.Versions = append(payload.Versions, wireVersion{
			Kind:     v.Key.Kind,
			ObjectID: v.Key.ID,
			Format:   v.Format,
			Data:     v.Data,
			Repr:     v.Repr,
		})
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal revision payload: %w", err)
	}
	return out, nil
}
