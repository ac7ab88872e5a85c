package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/sentinel"
)

// StoreContractSuite runs the same behavior checks against every Store
// implementation.
type StoreContractSuite struct {
	suite.Suite
	newStores func(t *testing.T) (Store, SyncStateStore, ProfileStore)

	store    Store
	states   SyncStateStore
	profiles ProfileStore
	ctx      context.Context
}

func (s *StoreContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store, s.states, s.profiles = s.newStores(s.T())
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStores: func(*testing.T) (Store, SyncStateStore, ProfileStore) {
		return NewInMemoryStore(), NewInMemorySyncStateStore(), NewInMemoryProfileStore()
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreContractSuite{newStores: func(t *testing.T) (Store, SyncStateStore, ProfileStore) {
		db := openSQLite(t, "file::memory:")
		return NewSQLStore(db, DialectSQLite), NewSQLSyncStateStore(db, DialectSQLite), NewSQLProfileStore(db, DialectSQLite)
	}})
}

func openSQLite(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ApplySchema(context.Background(), db, DialectSQLite))
	return db
}

func year(y int) *int { return &y }

func pubsFixture() []models.Publication {
	return []models.Publication{
		{WorkID: "W3", Title: "No year", CitedByCount: 100},
		{WorkID: "W1", Title: "Old", Year: year(2019), CitedByCount: 5},
		{WorkID: "W2", Title: "New", Year: year(2023), CitedByCount: 1, IsOpenAccess: true},
		{WorkID: "W4", Title: "New, more cited", Year: year(2023), CitedByCount: 8, DOI: "10.1/x"},
	}
}

func workIDs(pubs []models.Publication) []string {
	out := make([]string, len(pubs))
	for i, p := range pubs {
		out[i] = p.WorkID
	}
	return out
}

// ============================================================================
// Never synced
// ============================================================================

func (s *StoreContractSuite) TestNeverSynced() {
	subject := id.SubjectID("A404")

	_, err := s.store.GetStats(s.ctx, subject, models.StatsKindProfile)
	s.ErrorIs(err, sentinel.ErrNotFound)

	topics, err := s.store.ListTopics(s.ctx, subject)
	s.Require().NoError(err)
	s.NotNil(topics)
	s.Empty(topics)

	pubs, err := s.store.ListPublications(s.ctx, subject, 0)
	s.Require().NoError(err)
	s.NotNil(pubs)
	s.Empty(pubs)

	affs, err := s.store.ListAffiliations(s.ctx, subject)
	s.Require().NoError(err)
	s.NotNil(affs)
	s.Empty(affs)
}

// ============================================================================
// Replace semantics
// ============================================================================

func (s *StoreContractSuite) TestReplaceAllPublications_Ordering() {
	subject := id.SubjectID("A1")
	s.Require().NoError(s.store.ReplaceAllPublications(s.ctx, subject, pubsFixture()))

	pubs, err := s.store.ListPublications(s.ctx, subject, 0)
	s.Require().NoError(err)
	s.Equal([]string{"W4", "W2", "W1", "W3"}, workIDs(pubs), "year desc, citations desc, nulls last")
	s.Equal(subject, pubs[0].SubjectID)
	s.Equal("10.1/x", pubs[0].DOI)
	s.True(pubs[1].IsOpenAccess)
	s.Nil(pubs[3].Year)

	limited, err := s.store.ListPublications(s.ctx, subject, 2)
	s.Require().NoError(err)
	s.Equal([]string{"W4", "W2"}, workIDs(limited))
}

func (s *StoreContractSuite) TestReplaceAllPublications_NoLeftovers() {
	subject := id.SubjectID("A123")
	s.Require().NoError(s.store.ReplaceAllPublications(s.ctx, subject, pubsFixture()[:3]))
	s.Require().NoError(s.store.ReplaceAllPublications(s.ctx, subject, pubsFixture()[1:3]))

	pubs, err := s.store.ListPublications(s.ctx, subject, 0)
	s.Require().NoError(err)
	s.Equal([]string{"W2", "W1"}, workIDs(pubs))
}

func (s *StoreContractSuite) TestReplaceAll_EmptyClears() {
	subject := id.SubjectID("A1")
	s.Require().NoError(s.store.ReplaceAllTopics(s.ctx, subject, []models.Topic{{TopicID: "T1", DisplayName: "x", Count: 1}}))
	s.Require().NoError(s.store.ReplaceAllTopics(s.ctx, subject, nil))

	topics, err := s.store.ListTopics(s.ctx, subject)
	s.Require().NoError(err)
	s.Empty(topics)
}

func (s *StoreContractSuite) TestReplaceAll_Idempotent() {
	subject := id.SubjectID("A1")
	s.Require().NoError(s.store.ReplaceAllPublications(s.ctx, subject, pubsFixture()))
	first, err := s.store.ListPublications(s.ctx, subject, 0)
	s.Require().NoError(err)

	s.Require().NoError(s.store.ReplaceAllPublications(s.ctx, subject, pubsFixture()))
	second, err := s.store.ListPublications(s.ctx, subject, 0)
	s.Require().NoError(err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	s.Equal(string(a), string(b))
}

func (s *StoreContractSuite) TestReplaceAll_SubjectsIsolated() {
	s.Require().NoError(s.store.ReplaceAllTopics(s.ctx, "A1", []models.Topic{{TopicID: "T1", DisplayName: "one", Count: 1}}))
	s.Require().NoError(s.store.ReplaceAllTopics(s.ctx, "A2", []models.Topic{{TopicID: "T2", DisplayName: "two", Count: 2}}))
	s.Require().NoError(s.store.ReplaceAllTopics(s.ctx, "A1", nil))

	topics, err := s.store.ListTopics(s.ctx, "A2")
	s.Require().NoError(err)
	s.Require().Len(topics, 1)
	s.Equal("T2", topics[0].TopicID)
}

func (s *StoreContractSuite) TestTopicsAndAffiliations_Ordering() {
	subject := id.SubjectID("A1")
	s.Require().NoError(s.store.ReplaceAllTopics(s.ctx, subject, []models.Topic{
		{TopicID: "T2", DisplayName: "b", Count: 3},
		{TopicID: "T1", DisplayName: "a", Count: 3},
		{TopicID: "T9", DisplayName: "z", Count: 10, Field: "Mathematics"},
	}))
	s.Require().NoError(s.store.ReplaceAllAffiliations(s.ctx, subject, []models.Affiliation{
		{InstitutionID: "I1", DisplayName: "Undated"},
		{InstitutionID: "I2", DisplayName: "Old", StartYear: year(2001), EndYear: year(2005), Years: []int{2005, 2001}},
		{InstitutionID: "I3", DisplayName: "Recent", StartYear: year(2018), EndYear: year(2024), Years: []int{2024, 2018}},
	}))

	topics, err := s.store.ListTopics(s.ctx, subject)
	s.Require().NoError(err)
	s.Equal("T9", topics[0].TopicID)
	s.Equal("Mathematics", topics[0].Field)
	s.Equal("T1", topics[1].TopicID)
	s.Equal("T2", topics[2].TopicID)

	affs, err := s.store.ListAffiliations(s.ctx, subject)
	s.Require().NoError(err)
	s.Require().Len(affs, 3)
	s.Equal("I3", affs[0].InstitutionID)
	s.Equal([]int{2024, 2018}, affs[0].Years)
	s.Equal(2024, *affs[0].EndYear)
	s.Equal("I2", affs[1].InstitutionID)
	s.Equal("I1", affs[2].InstitutionID)
	s.Nil(affs[2].StartYear)
	s.Empty(affs[2].Years)
}

func (s *StoreContractSuite) TestStats_RoundTrip() {
	subject := id.SubjectID("A1")
	updated := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.Require().NoError(s.store.ReplaceStats(s.ctx, subject, models.CachedStats{
		Kind:        models.StatsKindProfile,
		Data:        json.RawMessage(`{"worksCount":3}`),
		LastUpdated: updated,
	}))
	s.Require().NoError(s.store.ReplaceStats(s.ctx, subject, models.CachedStats{
		Kind:        models.StatsKindProfile,
		Data:        json.RawMessage(`{"worksCount":4}`),
		LastUpdated: updated.Add(time.Hour),
	}))

	got, err := s.store.GetStats(s.ctx, subject, models.StatsKindProfile)
	s.Require().NoError(err)
	s.JSONEq(`{"worksCount":4}`, string(got.Data))
	s.True(got.LastUpdated.Equal(updated.Add(time.Hour)))
	s.Equal(subject, got.SubjectID)

	_, err = s.store.GetStats(s.ctx, subject, "other-kind")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// ============================================================================
// Transactions
// ============================================================================

func (s *StoreContractSuite) TestRunInTx_CommitsTogether() {
	subject := id.SubjectID("A1")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.ReplaceAllTopics(ctx, subject, []models.Topic{{TopicID: "T1", DisplayName: "t", Count: 1}}); err != nil {
			return err
		}
		return s.store.ReplaceAllPublications(ctx, subject, pubsFixture())
	})
	s.Require().NoError(err)

	topics, _ := s.store.ListTopics(s.ctx, subject)
	pubs, _ := s.store.ListPublications(s.ctx, subject, 0)
	s.Len(topics, 1)
	s.Len(pubs, 4)
}

func (s *StoreContractSuite) TestRunInTx_RollbackKeepsPreviousSnapshot() {
	subject := id.SubjectID("A1")
	s.Require().NoError(s.store.ReplaceAllPublications(s.ctx, subject, pubsFixture()))

	boom := errors.New("affiliations failed")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.ReplaceAllPublications(ctx, subject, nil); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	pubs, err := s.store.ListPublications(s.ctx, subject, 0)
	s.Require().NoError(err)
	s.Len(pubs, 4, "rolled back replace is never visible")
}

// ============================================================================
// Sync state and profiles
// ============================================================================

func (s *StoreContractSuite) TestSyncState() {
	subject := id.SubjectID("A1")
	st, err := s.states.GetSyncState(s.ctx, subject)
	s.Require().NoError(err)
	s.Equal(models.SyncStatusIdle, st.Status)
	s.Nil(st.LastSyncedAt)

	synced := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	attempt := synced.Add(time.Minute)
	s.Require().NoError(s.states.SaveSyncState(s.ctx, models.SyncState{
		SubjectID:     subject,
		Status:        models.SyncStatusFailed,
		LastSyncedAt:  &synced,
		LastAttemptAt: &attempt,
		LastError:     "upstream unavailable",
		RunID:         "run-1",
	}))

	st, err = s.states.GetSyncState(s.ctx, subject)
	s.Require().NoError(err)
	s.Equal(models.SyncStatusFailed, st.Status)
	s.Require().NotNil(st.LastSyncedAt)
	s.True(st.LastSyncedAt.Equal(synced))
	s.True(st.LastAttemptAt.Equal(attempt))
	s.Equal("upstream unavailable", st.LastError)
	s.Equal("run-1", st.RunID)
}

func (s *StoreContractSuite) TestProfiles() {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := models.Profile{SubjectID: "A2", DisplayName: "Grace", CreatedAt: now, UpdatedAt: now}

	s.Require().NoError(s.profiles.CreateProfile(s.ctx, p))
	s.ErrorIs(s.profiles.CreateProfile(s.ctx, p), sentinel.ErrConflict)
	s.Require().NoError(s.profiles.CreateProfile(s.ctx, models.Profile{SubjectID: "A1", DisplayName: "Ada", CreatedAt: now, UpdatedAt: now}))

	p.Bio = "compilers"
	p.UpdatedAt = now.Add(time.Hour)
	s.Require().NoError(s.profiles.UpdateProfile(s.ctx, p))
	s.ErrorIs(s.profiles.UpdateProfile(s.ctx, models.Profile{SubjectID: "A9"}), sentinel.ErrNotFound)

	got, err := s.profiles.GetProfile(s.ctx, "A2")
	s.Require().NoError(err)
	s.Equal("compilers", got.Bio)
	s.True(got.CreatedAt.Equal(now))
	s.True(got.UpdatedAt.Equal(now.Add(time.Hour)))

	_, err = s.profiles.GetProfile(s.ctx, "A9")
	s.ErrorIs(err, sentinel.ErrNotFound)

	list, err := s.profiles.ListProfiles(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(id.SubjectID("A1"), list[0].SubjectID)
}

// ============================================================================
// Visibility during a transaction
// ============================================================================

func TestInMemoryStore_ReadersSeePreviousSnapshotDuringTx(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	subject := id.SubjectID("A1")
	require.NoError(t, s.ReplaceAllPublications(ctx, subject, pubsFixture()))

	err := s.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.ReplaceAllPublications(txCtx, subject, nil))
		pubs, err := s.ListPublications(ctx, subject, 0)
		require.NoError(t, err)
		assert.Len(t, pubs, 4, "staged replace is invisible before commit")
		return nil
	})
	require.NoError(t, err)

	pubs, err := s.ListPublications(ctx, subject, 0)
	require.NoError(t, err)
	assert.Empty(t, pubs)
}

func TestSQLiteStore_ReadersSeePreviousSnapshotDuringTx(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "cache.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(2)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ApplySchema(ctx, db, DialectSQLite))

	s := NewSQLStore(db, DialectSQLite)
	subject := id.SubjectID("A1")
	require.NoError(t, s.ReplaceAllPublications(ctx, subject, pubsFixture()))

	err = s.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.ReplaceAllPublications(txCtx, subject, pubsFixture()[:1]))
		pubs, err := s.ListPublications(ctx, subject, 0)
		require.NoError(t, err)
		assert.Len(t, pubs, 4, "uncommitted replace is invisible to other connections")
		return nil
	})
	require.NoError(t, err)

	pubs, err := s.ListPublications(ctx, subject, 0)
	require.NoError(t, err)
	assert.Len(t, pubs, 1)
}

func TestRebind(t *testing.T) {
	pg := conn{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := conn{dialect: DialectSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestDBTimeScan(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	for _, v := range []any{want, want.Format(time.RFC3339Nano), []byte(want.Format(time.RFC3339Nano))} {
		var got dbTime
		require.NoError(t, got.Scan(v))
		assert.True(t, got.Valid)
		assert.True(t, got.Time.Equal(want))
	}

	var null dbTime
	require.NoError(t, null.Scan(nil))
	assert.Nil(t, null.ptr())

	assert.Error(t, new(dbTime).Scan(42))
}
