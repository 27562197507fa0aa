package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"chronicle/internal/notes"
	notesstore "chronicle/internal/notes/store"
	"chronicle/pkg/platform/sentinel"
	"chronicle/pkg/platform/txn"
	"chronicle/pkg/requestcontext"
	"chronicle/pkg/revision"
	revmemory "chronicle/pkg/revision/store/memory"
)

// =============================================================================
// Notes Service Suite
// =============================================================================
// Verifies that each operation records exactly one revision with the
// request's actor and origin, and that failures record nothing.

type NotesServiceSuite struct {
	suite.Suite

	dispatcher *revision.Dispatcher
	registry   *revision.Registry
	resource   *txn.MemResource
	notes      *notesstore.InMemory
	revisions  *revmemory.InMemoryStore
	service    *Service
}

func TestNotesServiceSuite(t *testing.T) {
	suite.Run(t, new(NotesServiceSuite))
}

func (s *NotesServiceSuite) SetupTest() {
	s.dispatcher = revision.NewDispatcher()

	reg, err := revision.New("notes/"+s.T().Name(), s.dispatcher)
	s.Require().NoError(err)
	s.registry = reg
	s.Require().NoError(reg.Register(&notes.Note{},
		revision.WithImmediateEvents(revision.EventDeleted)))

	s.resource = txn.NewMem("primary")
	s.notes = notesstore.NewInMemory()
	s.revisions = revmemory.NewInMemoryStore(reg)
	reg.SubscribeRevisions(s.revisions)

	s.service, err = New(s.notes, s.resource, s.dispatcher, nil, nil)
	s.Require().NoError(err)
}

func (s *NotesServiceSuite) TearDownTest() {
	s.Require().NoError(s.registry.Close())
}

func (s *NotesServiceSuite) requestCtx() context.Context {
	ctx := requestcontext.WithActor(context.Background(), "alice")
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	return requestcontext.WithClientMetadata(ctx, "10.0.0.1", "cli/1.0")
}

func (s *NotesServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.resource, s.dispatcher, nil, nil)
		s.Error(err)
		s.Contains(err.Error(), "store is required")
	})

	s.Run("nil resource returns error", func() {
		_, err := New(s.notes, nil, s.dispatcher, nil, nil)
		s.Error(err)
	})

	s.Run("nil dispatcher returns error", func() {
		_, err := New(s.notes, s.resource, nil, nil, nil)
		s.Error(err)
	})
}

func (s *NotesServiceSuite) TestSave() {
	err := s.service.Save(s.requestCtx(), &notes.Note{ID: "n-1", Title: "Plan"}, "initial")
	s.Require().NoError(err)

	stored, err := s.notes.Get(context.Background(), "n-1")
	s.Require().NoError(err)
	s.Equal("Plan", stored.Title)

	recent, err := s.revisions.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal("alice", recent[0].Actor)
	s.Equal("initial", recent[0].Comment)
	s.Require().Len(recent[0].Meta, 1)
	origin, ok := recent[0].Meta[0].(ChangeOrigin)
	s.Require().True(ok)
	s.Equal("req-1", origin.RequestID)
	s.Equal("10.0.0.1", origin.ClientIP)

	s.Equal(1, s.resource.Commits())
}

func (s *NotesServiceSuite) TestSaveValidation() {
	s.Run("missing id rejected before any scope opens", func() {
		err := s.service.Save(s.requestCtx(), &notes.Note{Title: "Plan"}, "")
		s.Error(err)
		s.Zero(s.resource.Begins())
	})

	s.Run("missing title rejected before any scope opens", func() {
		err := s.service.Save(s.requestCtx(), &notes.Note{ID: "n-2"}, "")
		s.Error(err)
		s.Zero(s.resource.Begins())
	})
}

func (s *NotesServiceSuite) TestDelete() {
	s.Require().NoError(s.service.Save(s.requestCtx(), &notes.Note{ID: "n-1", Title: "Plan", Body: "draft"}, ""))
	s.Require().NoError(s.service.Delete(s.requestCtx(), "n-1", "cleanup"))

	_, err := s.notes.Get(context.Background(), "n-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	recent, err := s.revisions.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("cleanup", recent[0].Comment)
	s.Require().Len(recent[0].Versions, 1)
	s.JSONEq(`{"id":"n-1","title":"Plan","body":"draft"}`, string(recent[0].Versions[0].Data))
}

func (s *NotesServiceSuite) TestDeleteMissingNote() {
	err := s.service.Delete(s.requestCtx(), "ghost", "")
	s.ErrorIs(err, sentinel.ErrNotFound)

	recent, err := s.revisions.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Empty(recent)
	s.Equal(1, s.resource.Rollbacks())
	s.Zero(s.resource.Commits())
}

type failingStore struct {
	*notesstore.InMemory
	err error
}

func (f *failingStore) Upsert(context.Context, *notes.Note) error { return f.err }

func (s *NotesServiceSuite) TestStoreFailureRecordsNothing() {
	boom := errors.New("disk full")
	svc, err := New(&failingStore{InMemory: s.notes, err: boom}, s.resource, s.dispatcher, nil, nil)
	s.Require().NoError(err)

	err = svc.Save(s.requestCtx(), &notes.Note{ID: "n-1", Title: "Plan"}, "")
	s.Require().ErrorIs(err, boom)

	recent, err := s.revisions.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Empty(recent)
	s.Equal(1, s.resource.Rollbacks())
	s.Zero(s.resource.Commits())
}
