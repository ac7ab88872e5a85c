//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"showcase/internal/profile/models"
	"showcase/internal/profile/store"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/sentinel"
	"showcase/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	cache    *store.SQLStore
	states   *store.SQLSyncStateStore
	profiles *store.SQLProfileStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(store.ApplySchema(context.Background(), s.postgres.DB, store.DialectPostgres))
	s.cache = store.NewSQLStore(s.postgres.DB, store.DialectPostgres)
	s.states = store.NewSQLSyncStateStore(s.postgres.DB, store.DialectPostgres)
	s.profiles = store.NewSQLProfileStore(s.postgres.DB, store.DialectPostgres)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"profile_stats", "topics", "publications", "affiliations", "sync_state", "profiles")
	s.Require().NoError(err)
}

func publications(n int) []models.Publication {
	out := make([]models.Publication, n)
	for i := range out {
		y := 2000 + i
		out[i] = models.Publication{WorkID: fmt.Sprintf("W%03d", i), Title: "t", Year: &y, CitedByCount: i}
	}
	return out
}

// TestConcurrentReplaceSameSubject verifies that concurrent full replaces of
// one subject never interleave: the final set is exactly one writer's set.
func (s *PostgresStoreSuite) TestConcurrentReplaceSameSubject() {
	ctx := context.Background()
	subject := id.SubjectID("A1")
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- s.cache.ReplaceAllPublications(ctx, subject, publications(n))
		}(i)
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			failed++
		}
	}

	pubs, err := s.cache.ListPublications(ctx, subject, 0)
	s.Require().NoError(err)
	s.NotEmpty(pubs)
	// publications(n) is a prefix of publications(n+1): a clean winner leaves a
	// contiguous prefix with no duplicates.
	seen := map[string]bool{}
	for _, p := range pubs {
		s.False(seen[p.WorkID], "duplicate %s", p.WorkID)
		seen[p.WorkID] = true
	}
	for i := 0; i < len(pubs); i++ {
		s.True(seen[fmt.Sprintf("W%03d", i)])
	}
	s.Less(failed, writers, "at least one writer commits")
}

// TestReaderNeverSeesEmptyIntermediate polls while a writer keeps replacing a
// non-empty set; an empty read would mean a half-applied replace leaked.
func (s *PostgresStoreSuite) TestReaderNeverSeesEmptyIntermediate() {
	ctx := context.Background()
	subject := id.SubjectID("A2")
	s.Require().NoError(s.cache.ReplaceAllPublications(ctx, subject, publications(50)))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.cache.ReplaceAllPublications(ctx, subject, publications(50))
			}
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pubs, err := s.cache.ListPublications(ctx, subject, 0)
		s.Require().NoError(err)
		s.Require().Len(pubs, 50)
	}
	close(stop)
	<-done
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackAllCollections() {
	ctx := context.Background()
	subject := id.SubjectID("A3")
	s.Require().NoError(s.cache.ReplaceAllPublications(ctx, subject, publications(3)))

	err := s.cache.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.cache.ReplaceAllTopics(ctx, subject, []models.Topic{{TopicID: "T1", DisplayName: "x"}}); err != nil {
			return err
		}
		if err := s.cache.ReplaceAllPublications(ctx, subject, nil); err != nil {
			return err
		}
		return sentinel.ErrUnavailable
	})
	s.ErrorIs(err, sentinel.ErrUnavailable)

	topics, _ := s.cache.ListTopics(ctx, subject)
	pubs, _ := s.cache.ListPublications(ctx, subject, 0)
	s.Empty(topics)
	s.Len(pubs, 3)
}

func (s *PostgresStoreSuite) TestSyncStateAndProfiles() {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.states.SaveSyncState(ctx, models.SyncState{SubjectID: "A4", Status: models.SyncStatusIdle, LastSyncedAt: &now}))
	st, err := s.states.GetSyncState(ctx, "A4")
	s.Require().NoError(err)
	s.True(st.LastSyncedAt.Equal(now))

	p := models.Profile{SubjectID: "A4", DisplayName: "Ada", CreatedAt: now, UpdatedAt: now}
	s.Require().NoError(s.profiles.CreateProfile(ctx, p))
	s.ErrorIs(s.profiles.CreateProfile(ctx, p), sentinel.ErrConflict)
}
