package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/sentinel"
)

// InMemorySyncStateStore keeps sync state in a map.
type InMemorySyncStateStore struct {
	mu     sync.RWMutex
	states map[id.SubjectID]models.SyncState
}

func NewInMemorySyncStateStore() *InMemorySyncStateStore {
	return &InMemorySyncStateStore{states: make(map[id.SubjectID]models.SyncState)}
}

func (s *InMemorySyncStateStore) GetSyncState(_ context.Context, subjectID id.SubjectID) (models.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[subjectID]; ok {
		return st, nil
	}
	return models.NewSyncState(subjectID), nil
}

func (s *InMemorySyncStateStore) SaveSyncState(_ context.Context, state models.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SubjectID] = state
	return nil
}

// InMemoryProfileStore keeps edited profiles in a map.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[id.SubjectID]models.Profile
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{profiles: make(map[id.SubjectID]models.Profile)}
}

func (s *InMemoryProfileStore) CreateProfile(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.SubjectID]; ok {
		return sentinel.ErrConflict
	}
	s.profiles[p.SubjectID] = p
	return nil
}

func (s *InMemoryProfileStore) UpdateProfile(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[p.SubjectID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	s.profiles[p.SubjectID] = p
	return nil
}

func (s *InMemoryProfileStore) GetProfile(_ context.Context, subjectID id.SubjectID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryProfileStore) ListProfiles(_ context.Context) ([]models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Profile) int { return cmp.Compare(a.SubjectID, b.SubjectID) })
	return out, nil
}
