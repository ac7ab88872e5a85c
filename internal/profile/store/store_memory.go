package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/sentinel"
)

// snapshot is an immutable view of one subject's collections. Writers build a
// new snapshot and swap the pointer; readers never lock.
type snapshot struct {
	stats  map[models.StatsKind]models.CachedStats
	topics []models.Topic
	pubs   []models.Publication
	affs   []models.Affiliation
}

type subjectShard struct {
	mu   sync.Mutex // serializes writers of this subject only
	snap atomic.Pointer[snapshot]
}

// change is a staged edit to one subject's snapshot. Nil fields are untouched.
type change struct {
	stats  map[models.StatsKind]models.CachedStats
	topics *[]models.Topic
	pubs   *[]models.Publication
	affs   *[]models.Affiliation
}

func (c *change) apply(old *snapshot) *snapshot {
	next := &snapshot{}
	if old != nil {
		*next = *old
	}
	if c.stats != nil {
		merged := make(map[models.StatsKind]models.CachedStats, len(next.stats)+len(c.stats))
		maps.Copy(merged, next.stats)
		maps.Copy(merged, c.stats)
		next.stats = merged
	}
	if c.topics != nil {
		next.topics = *c.topics
	}
	if c.pubs != nil {
		next.pubs = *c.pubs
	}
	if c.affs != nil {
		next.affs = *c.affs
	}
	return next
}

// memTx stages changes until RunInTx commits them.
type memTx struct {
	mu      sync.Mutex
	changes map[id.SubjectID]*change
}

type memTxKey struct{}

// InMemoryStore keeps every subject in its own shard so a replace for one
// subject never waits on another.
type InMemoryStore struct {
	shards sync.Map // id.SubjectID -> *subjectShard
}

// NewInMemoryStore creates an empty cache.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) shard(subjectID id.SubjectID) *subjectShard {
	if sh, ok := s.shards.Load(subjectID); ok {
		return sh.(*subjectShard)
	}
	sh, _ := s.shards.LoadOrStore(subjectID, &subjectShard{})
	return sh.(*subjectShard)
}

func (s *InMemoryStore) load(subjectID id.SubjectID) *snapshot {
	if sh, ok := s.shards.Load(subjectID); ok {
		return sh.(*subjectShard).snap.Load()
	}
	return nil
}

func (s *InMemoryStore) commit(subjectID id.SubjectID, c *change) {
	sh := s.shard(subjectID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.snap.Store(c.apply(sh.snap.Load()))
}

// stage applies c now, or merges it into the transaction in ctx.
func (s *InMemoryStore) stage(ctx context.Context, subjectID id.SubjectID, c *change) {
	t, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok {
		s.commit(subjectID, c)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	pending, ok := t.changes[subjectID]
	if !ok {
		t.changes[subjectID] = c
		return
	}
	if c.stats != nil {
		if pending.stats == nil {
			pending.stats = map[models.StatsKind]models.CachedStats{}
		}
		maps.Copy(pending.stats, c.stats)
	}
	if c.topics != nil {
		pending.topics = c.topics
	}
	if c.pubs != nil {
		pending.pubs = c.pubs
	}
	if c.affs != nil {
		pending.affs = c.affs
	}
}

// RunInTx stages every replace made by fn and publishes them together, one
// pointer swap per subject, when fn returns nil. A nested call joins the
// outer transaction.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	t := &memTx{changes: map[id.SubjectID]*change{}}
	if err := fn(context.WithValue(ctx, memTxKey{}, t)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for subjectID, c := range t.changes {
		s.commit(subjectID, c)
	}
	return nil
}

func (s *InMemoryStore) ReplaceStats(ctx context.Context, subjectID id.SubjectID, stats models.CachedStats) error {
	stats.SubjectID = subjectID
	stats.Data = slices.Clone(stats.Data)
	s.stage(ctx, subjectID, &change{stats: map[models.StatsKind]models.CachedStats{stats.Kind: stats}})
	return nil
}

func (s *InMemoryStore) ReplaceAllTopics(ctx context.Context, subjectID id.SubjectID, topics []models.Topic) error {
	out := sortedTopics(topics)
	for i := range out {
		out[i].SubjectID = subjectID
	}
	s.stage(ctx, subjectID, &change{topics: &out})
	return nil
}

func (s *InMemoryStore) ReplaceAllPublications(ctx context.Context, subjectID id.SubjectID, pubs []models.Publication) error {
	out := sortedPublications(pubs)
	for i := range out {
		out[i].SubjectID = subjectID
	}
	s.stage(ctx, subjectID, &change{pubs: &out})
	return nil
}

func (s *InMemoryStore) ReplaceAllAffiliations(ctx context.Context, subjectID id.SubjectID, affs []models.Affiliation) error {
	out := sortedAffiliations(affs)
	for i := range out {
		out[i].SubjectID = subjectID
		out[i].Years = slices.Clone(out[i].Years)
	}
	s.stage(ctx, subjectID, &change{affs: &out})
	return nil
}

func (s *InMemoryStore) GetStats(_ context.Context, subjectID id.SubjectID, kind models.StatsKind) (*models.CachedStats, error) {
	snap := s.load(subjectID)
	if snap == nil {
		return nil, sentinel.ErrNotFound
	}
	stats, ok := snap.stats[kind]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	stats.Data = slices.Clone(stats.Data)
	return &stats, nil
}

func (s *InMemoryStore) ListTopics(_ context.Context, subjectID id.SubjectID) ([]models.Topic, error) {
	snap := s.load(subjectID)
	if snap == nil {
		return []models.Topic{}, nil
	}
	return append([]models.Topic{}, snap.topics...), nil
}

func (s *InMemoryStore) ListPublications(_ context.Context, subjectID id.SubjectID, limit int) ([]models.Publication, error) {
	snap := s.load(subjectID)
	if snap == nil {
		return []models.Publication{}, nil
	}
	pubs := snap.pubs
	if limit > 0 && limit < len(pubs) {
		pubs = pubs[:limit]
	}
	return append([]models.Publication{}, pubs...), nil
}

func (s *InMemoryStore) ListAffiliations(_ context.Context, subjectID id.SubjectID) ([]models.Affiliation, error) {
	snap := s.load(subjectID)
	if snap == nil {
		return []models.Affiliation{}, nil
	}
	return append([]models.Affiliation{}, snap.affs...), nil
}
