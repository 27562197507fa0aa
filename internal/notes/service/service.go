// Package service orchestrates note mutations through revision scopes: each
// operation runs inside one scope wrapped in one transaction, so the note
// rows and the revision recording them are atomic.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"chronicle/internal/notes"
	"chronicle/internal/platform/metrics"
	"chronicle/pkg/platform/txn"
	"chronicle/pkg/requestcontext"
	"chronicle/pkg/revision"
)

// Store is the persistence layer for notes.
type Store interface {
	Upsert(ctx context.Context, n *notes.Note) error
	Get(ctx context.Context, id string) (*notes.Note, error)
	Delete(ctx context.Context, id string) error
}

// ChangeOrigin is attached to each revision as metadata, recording where the
// triggering request came from.
type ChangeOrigin struct {
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Service exposes note operations.
type Service struct {
	store      Store
	resource   txn.Resource
	dispatcher *revision.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a note service.
func New(store Store, resource txn.Resource, dispatcher *revision.Dispatcher, logger *slog.Logger, m *metrics.Metrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("notes store is required")
	}
	if resource == nil {
		return nil, fmt.Errorf("transactional resource is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		resource:   resource,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
	}, nil
}

// annotate stamps the scope with the request's actor and origin metadata.
func annotate(ctx context.Context, comment string) error {
	if actor := requestcontext.Actor(ctx); actor != "" {
		if err := revision.SetActor(ctx, actor); err != nil {
			return err
		}
	}
	if comment != "" {
		if err := revision.SetComment(ctx, comment); err != nil {
			return err
		}
	}
	origin := ChangeOrigin{
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	if origin != (ChangeOrigin{}) {
		return revision.AddMeta(ctx, origin)
	}
	return nil
}

// Save writes the note and records a revision for it.
func (s *Service) Save(ctx context.Context, n *notes.Note, comment string) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("note id is required")
	}
	if n.Title == "" {
		return fmt.Errorf("note title is required")
	}

	err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		if err := annotate(ctx, comment); err != nil {
			return err
		}
		if err := s.store.Upsert(ctx, n); err != nil {
			return err
		}
		return s.dispatcher.Dispatch(ctx, revision.EventSaved, n)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncrementNotesSaved()
	}
	s.logger.Info("note saved", "note_id", n.ID, "actor", requestcontext.Actor(ctx))
	return nil
}

// Delete removes the note, capturing its final state eagerly before the row
// disappears.
func (s *Service) Delete(ctx context.Context, id, comment string) error {
	if id == "" {
		return fmt.Errorf("note id is required")
	}

	err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		if err := annotate(ctx, comment); err != nil {
			return err
		}
		n, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		// The delete event fires while the entity still exists; adapters
		// configured with immediate delete capture snapshot it here.
		if err := s.dispatcher.Dispatch(ctx, revision.EventDeleted, n); err != nil {
			return err
		}
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncrementNotesDeleted()
	}
	s.logger.Info("note deleted", "note_id", id, "actor", requestcontext.Actor(ctx))
	return nil
}

// Get returns the current state of a note.
func (s *Service) Get(ctx context.Context, id string) (*notes.Note, error) {
	return s.store.Get(ctx, id)
}
