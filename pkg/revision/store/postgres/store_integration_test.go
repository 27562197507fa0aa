//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"chronicle/pkg/platform/txn"
	"chronicle/pkg/revision"
	"chronicle/pkg/revision/store/postgres"
	"chronicle/pkg/testutil/containers"
)

type article struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (a *article) EntityKind() string { return "cms.article" }
func (a *article) EntityID() string   { return a.ID }

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer

	dispatcher *revision.Dispatcher
	registry   *revision.Registry
	resource   *txn.SQLResource
	store      *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()

	s.dispatcher = revision.NewDispatcher()
	reg, err := revision.New("store-postgres/"+s.T().Name(), s.dispatcher)
	s.Require().NoError(err)
	s.registry = reg
	s.Require().NoError(reg.Register(&article{}))

	s.resource = txn.NewSQL("primary", s.postgres.DB)
	s.store = postgres.New(s.postgres.DB, reg)
	s.Require().NoError(s.store.EnsureSchema(ctx))
	reg.SubscribeRevisions(s.store)

	_, err = s.postgres.DB.ExecContext(ctx, `TRUNCATE versions, revisions`)
	s.Require().NoError(err)
	_, err = s.postgres.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS articles (id TEXT PRIMARY KEY, title TEXT NOT NULL)
	`)
	s.Require().NoError(err)
	_, err = s.postgres.DB.ExecContext(ctx, `TRUNCATE articles`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.Require().NoError(s.registry.Close())
}

// scopeTx returns the scope's underlying transaction, so writes commit and
// roll back together with the revision rows.
func (s *PostgresStoreSuite) scopeTx(ctx context.Context) *sql.Tx {
	tx, ok := txn.From(ctx, "primary")
	s.Require().True(ok, "expected an open scope transaction")
	wrapped, ok := tx.(interface{ Unwrap() *sql.Tx })
	s.Require().True(ok)
	return wrapped.Unwrap()
}

// saveArticle upserts the row and fires the change event, the way a tracked
// persistence layer would.
func (s *PostgresStoreSuite) saveArticle(ctx context.Context, a *article) error {
	if _, err := s.scopeTx(ctx).ExecContext(ctx, `
		INSERT INTO articles (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title
	`, a.ID, a.Title); err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, revision.EventSaved, a)
}

func (s *PostgresStoreSuite) TestRevisionCommitsWithScope() {
	ctx := context.Background()

	err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		if err := revision.SetActor(ctx, "editor@acme"); err != nil {
			return err
		}
		if err := revision.SetComment(ctx, "publish v1"); err != nil {
			return err
		}
		return s.saveArticle(ctx, &article{ID: "art-1", Title: "Hello"})
	})
	s.Require().NoError(err)

	revs, err := s.store.ListByKey(ctx, revision.Key{Kind: "cms.article", ID: "art-1"})
	s.Require().NoError(err)
	s.Require().Len(revs, 1)
	s.Equal("editor@acme", revs[0].Actor)
	s.Equal("publish v1", revs[0].Comment)
	s.Equal("primary", revs[0].Resource)
	s.Require().Len(revs[0].Versions, 1)
	s.JSONEq(`{"id":"art-1","title":"Hello"}`, string(revs[0].Versions[0].Data))
}

func (s *PostgresStoreSuite) TestFailedScopeLeavesNoRows() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		if err := s.saveArticle(ctx, &article{ID: "art-1", Title: "Hello"}); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	revs, err := s.store.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Empty(revs, "revision rows roll back with the scope's transaction")
}

func (s *PostgresStoreSuite) TestNestedScopeSavepointIsolation() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		if err := s.saveArticle(ctx, &article{ID: "art-1", Title: "Keep"}); err != nil {
			return err
		}
		innerErr := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
			if err := s.saveArticle(ctx, &article{ID: "art-2", Title: "Discard"}); err != nil {
				return err
			}
			return boom
		})
		s.Require().ErrorIs(innerErr, boom)
		return nil
	})
	s.Require().NoError(err)

	// The rolled-back savepoint discarded art-2's row, and the emitted
	// revision only carries the outer capture.
	var count int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles`).Scan(&count))
	s.Equal(1, count)

	revs, err := s.store.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(revs, 1)
	s.Require().Len(revs[0].Versions, 1)
	s.Equal("art-1", revs[0].Versions[0].Key.ID)
}

func (s *PostgresStoreSuite) TestSuppressionSkipsIdenticalConsecutive() {
	ctx := context.Background()

	record := func(title string) {
		err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
			if err := revision.SetSuppressDuplicates(ctx, true); err != nil {
				return err
			}
			return s.saveArticle(ctx, &article{ID: "art-1", Title: title})
		})
		s.Require().NoError(err)
	}

	record("same")
	record("same")
	record("changed")

	revs, err := s.store.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Len(revs, 2)
}

func (s *PostgresStoreSuite) TestDeleteCapturesEagerSnapshot() {
	ctx := context.Background()

	s.Require().NoError(s.registry.Unregister(&article{}))
	s.Require().NoError(s.registry.Register(&article{},
		revision.WithImmediateEvents(revision.EventDeleted)))

	err := revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		return s.saveArticle(ctx, &article{ID: "art-1", Title: "Doomed"})
	})
	s.Require().NoError(err)

	err = revision.InScope(ctx, s.resource, func(ctx context.Context) error {
		a := &article{ID: "art-1", Title: "Doomed"}
		if err := s.dispatcher.Dispatch(ctx, revision.EventDeleted, a); err != nil {
			return err
		}
		_, err := s.scopeTx(ctx).ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, a.ID)
		return err
	})
	s.Require().NoError(err)

	revs, err := s.store.ListByKey(ctx, revision.Key{Kind: "cms.article", ID: "art-1"})
	s.Require().NoError(err)
	s.Require().Len(revs, 2)
	s.JSONEq(`{"id":"art-1","title":"Doomed"}`, string(revs[0].Versions[0].Data))
}
