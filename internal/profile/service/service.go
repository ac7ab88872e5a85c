// Package service is the entry point the HTTP layer and the scheduler use to
// read cached profiles, trigger syncs and follow change events.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"showcase/internal/notify/bus"
	"showcase/internal/platform/logger"
	"showcase/internal/profile/models"
	"showcase/internal/profile/orchestrator"
	"showcase/internal/profile/store"
	id "showcase/pkg/domain"
	dErrors "showcase/pkg/domain-errors"
	"showcase/pkg/platform/sentinel"
)

// Synchronizer runs profile syncs.
type Synchronizer interface {
	Synchronize(ctx context.Context, subjectID id.SubjectID) (orchestrator.Result, error)
	SynchronizeAsync(ctx context.Context, subjectID id.SubjectID) *orchestrator.Task
}

// Publisher announces profile edits.
type Publisher interface {
	Publish(event models.ChangeEvent)
}

// Subscriber hands out change-event subscriptions.
type Subscriber interface {
	Subscribe() *bus.Subscription
}

// Service composes the orchestrator, the cache and the profile store.
type Service struct {
	sync      Synchronizer
	cache     store.Store
	states    store.SyncStateStore
	profiles  store.ProfileStore
	publisher Publisher
	events    Subscriber

	publicationLimit int
	logger           *slog.Logger
	now              func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithPublicationLimit caps the publications returned by GetCachedView.
// Zero or less returns all of them.
func WithPublicationLimit(n int) Option {
	return func(s *Service) {
		s.publicationLimit = n
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service. publisher receives create and profile events; events
// serves subscriptions. Both are usually the same hub or relay pair.
func New(
	sync Synchronizer,
	cache store.Store,
	states store.SyncStateStore,
	profiles store.ProfileStore,
	publisher Publisher,
	events Subscriber,
	opts ...Option,
) *Service {
	s := &Service{
		sync:      sync,
		cache:     cache,
		states:    states,
		profiles:  profiles,
		publisher: publisher,
		events:    events,
		logger:    logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synchronize runs a sync and waits for it.
func (s *Service) Synchronize(ctx context.Context, subjectID id.SubjectID) (orchestrator.Result, error) {
	return s.sync.Synchronize(ctx, subjectID)
}

// SynchronizeAsync starts a sync and returns its handle.
func (s *Service) SynchronizeAsync(ctx context.Context, subjectID id.SubjectID) *orchestrator.Task {
	return s.sync.SynchronizeAsync(ctx, subjectID)
}

// SyncState returns the subject's sync bookkeeping.
func (s *Service) SyncState(ctx context.Context, subjectID id.SubjectID) (models.SyncState, error) {
	if subjectID.IsNil() {
		return models.SyncState{}, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	st, err := s.states.GetSyncState(ctx, subjectID)
	if err != nil {
		return models.SyncState{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sync state")
	}
	return st, nil
}

// GetCachedView assembles the read model. A never-synced subject yields an
// empty view with nil LastSynced, not an error.
func (s *Service) GetCachedView(ctx context.Context, subjectID id.SubjectID) (*models.CachedView, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}

	view := models.EmptyView(subjectID)

	st, err := s.states.GetSyncState(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sync state")
	}
	view.LastSynced = st.LastSyncedAt
	view.Status = st.Status

	stats, err := s.cache.GetStats(ctx, subjectID, models.StatsKindProfile)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stats")
	default:
		view.Stats = stats
	}

	topics, err := s.cache.ListTopics(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load topics")
	}
	pubs, err := s.cache.ListPublications(ctx, subjectID, s.publicationLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load publications")
	}
	affs, err := s.cache.ListAffiliations(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load affiliations")
	}
	if topics != nil {
		view.Topics = topics
	}
	if pubs != nil {
		view.Publications = pubs
	}
	if affs != nil {
		view.Affiliations = affs
	}
	return view, nil
}

// Subscribe returns a change-event subscription. Callers must Close it.
func (s *Service) Subscribe() *bus.Subscription {
	return s.events.Subscribe()
}

// CreateProfile stores a new profile, announces it and starts its first sync.
// The returned task reports that sync.
func (s *Service) CreateProfile(ctx context.Context, subjectID id.SubjectID, displayName, bio string) (*models.Profile, *orchestrator.Task, error) {
	if subjectID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	now := s.now()
	p := models.Profile{
		SubjectID:   subjectID,
		DisplayName: strings.TrimSpace(displayName),
		Bio:         strings.TrimSpace(bio),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.profiles.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "profile already exists")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}

	s.publish(subjectID, models.UpdateCreate, now)
	task := s.sync.SynchronizeAsync(ctx, subjectID)
	s.logger.InfoContext(ctx, "profile created", "subject_id", subjectID)
	return &p, task, nil
}

// UpdateProfile replaces the editable fields of an existing profile.
func (s *Service) UpdateProfile(ctx context.Context, subjectID id.SubjectID, displayName, bio string) (*models.Profile, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	now := s.now()
	p := models.Profile{
		SubjectID:   subjectID,
		DisplayName: strings.TrimSpace(displayName),
		Bio:         strings.TrimSpace(bio),
		UpdatedAt:   now,
	}
	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}

	s.publish(subjectID, models.UpdateProfile, now)
	return s.GetProfile(ctx, subjectID)
}

func (s *Service) GetProfile(ctx context.Context, subjectID id.SubjectID) (*models.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return p, nil
}

func (s *Service) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	return profiles, nil
}

func (s *Service) publish(subjectID id.SubjectID, kind models.UpdateType, at time.Time) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(models.ChangeEvent{SubjectID: subjectID, UpdateType: kind, Timestamp: at})
}
