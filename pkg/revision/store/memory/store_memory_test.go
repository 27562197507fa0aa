package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chronicle/pkg/platform/txn"
	"chronicle/pkg/requestcontext"
	"chronicle/pkg/revision"
)

// =============================================================================
// In-Memory Store Suite
// =============================================================================
// Runs real scopes end to end against the store, including the
// duplicate-suppression contract the scope core only threads a flag for.

type document struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func (d *document) EntityKind() string { return "docs.document" }
func (d *document) EntityID() string   { return d.ID }

type InMemoryStoreSuite struct {
	suite.Suite

	dispatcher *revision.Dispatcher
	registry   *revision.Registry
	resource   *txn.MemResource
	store      *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.dispatcher = revision.NewDispatcher()

	reg, err := revision.New("store-memory/"+s.T().Name(), s.dispatcher)
	s.Require().NoError(err)
	s.registry = reg
	s.Require().NoError(reg.Register(&document{}))

	s.resource = txn.NewMem("docs")
	s.store = NewInMemoryStore(reg)
	reg.SubscribeRevisions(s.store)
}

func (s *InMemoryStoreSuite) TearDownTest() {
	s.Require().NoError(s.registry.Close())
}

func (s *InMemoryStoreSuite) saveInScope(doc *document, opts ...func(ctx context.Context) error) {
	err := revision.InScope(context.Background(), s.resource, func(ctx context.Context) error {
		for _, opt := range opts {
			if err := opt(ctx); err != nil {
				return err
			}
		}
		return s.dispatcher.Dispatch(ctx, revision.EventSaved, doc)
	})
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestStampsRequestPinnedTime() {
	pinned := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), pinned)

	err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		return s.dispatcher.Dispatch(ctx, revision.EventSaved, &document{ID: "doc-1", Body: "v1"})
	})
	s.Require().NoError(err)

	recent, err := s.store.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.True(recent[0].CreatedAt.Equal(pinned))
}

func (s *InMemoryStoreSuite) TestPersistsRevisionWithVersions() {
	s.saveInScope(&document{ID: "doc-1", Body: "v1"}, func(ctx context.Context) error {
		if err := revision.SetActor(ctx, "alice"); err != nil {
			return err
		}
		return revision.SetComment(ctx, "first draft")
	})

	recent, err := s.store.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)

	rev := recent[0]
	s.NotEmpty(rev.ID)
	s.Equal("docs", rev.Resource)
	s.Equal("alice", rev.Actor)
	s.Equal("first draft", rev.Comment)
	s.False(rev.CreatedAt.IsZero())
	s.Require().Len(rev.Versions, 1)
	s.Equal(revision.Key{Kind: "docs.document", ID: "doc-1"}, rev.Versions[0].Key)
	s.JSONEq(`{"id":"doc-1","body":"v1"}`, string(rev.Versions[0].Data))
}

func (s *InMemoryStoreSuite) TestListByKeyNewestFirst() {
	s.saveInScope(&document{ID: "doc-1", Body: "v1"})
	s.saveInScope(&document{ID: "doc-2", Body: "other"})
	s.saveInScope(&document{ID: "doc-1", Body: "v2"})

	matches, err := s.store.ListByKey(context.Background(), revision.Key{Kind: "docs.document", ID: "doc-1"})
	s.Require().NoError(err)
	s.Require().Len(matches, 2)
	s.JSONEq(`{"id":"doc-1","body":"v2"}`, string(matches[0].Versions[0].Data))
	s.JSONEq(`{"id":"doc-1","body":"v1"}`, string(matches[1].Versions[0].Data))
}

func (s *InMemoryStoreSuite) TestSuppressionSkipsIdenticalConsecutive() {
	suppress := func(ctx context.Context) error {
		return revision.SetSuppressDuplicates(ctx, true)
	}

	s.saveInScope(&document{ID: "doc-1", Body: "same"}, suppress)
	s.saveInScope(&document{ID: "doc-1", Body: "same"}, suppress)

	recent, err := s.store.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Len(recent, 1, "an identical consecutive revision is suppressed")

	// A changed payload ends the run of duplicates.
	s.saveInScope(&document{ID: "doc-1", Body: "changed"}, suppress)
	recent, err = s.store.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Len(recent, 2)
}

func (s *InMemoryStoreSuite) TestSuppressionOffStoresDuplicates() {
	s.saveInScope(&document{ID: "doc-1", Body: "same"})
	s.saveInScope(&document{ID: "doc-1", Body: "same"})

	recent, err := s.store.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Len(recent, 2)
}

func (s *InMemoryStoreSuite) TestClear() {
	s.saveInScope(&document{ID: "doc-1", Body: "v1"})
	s.store.Clear()

	recent, err := s.store.Recent(context.Background(), 10)
	s.Require().NoError(err)
	s.Empty(recent)
}
