// Package store persists the per-subject cache collections, sync state, and
// edited profiles.
//
// Every ReplaceAll* call supersedes the subject's whole collection in one
// atomic step; readers see either the old or the new set. Calls made inside
// RunInTx become visible together when the function returns nil.
package store

import (
	"cmp"
	"context"
	"slices"

	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
)

// Store is the cache of synchronized collections.
type Store interface {
	ReplaceStats(ctx context.Context, subjectID id.SubjectID, stats models.CachedStats) error
	ReplaceAllTopics(ctx context.Context, subjectID id.SubjectID, topics []models.Topic) error
	ReplaceAllPublications(ctx context.Context, subjectID id.SubjectID, pubs []models.Publication) error
	ReplaceAllAffiliations(ctx context.Context, subjectID id.SubjectID, affs []models.Affiliation) error

	// GetStats returns sentinel.ErrNotFound when no blob of kind exists.
	GetStats(ctx context.Context, subjectID id.SubjectID, kind models.StatsKind) (*models.CachedStats, error)
	ListTopics(ctx context.Context, subjectID id.SubjectID) ([]models.Topic, error)
	// ListPublications returns at most limit records; limit <= 0 returns all.
	ListPublications(ctx context.Context, subjectID id.SubjectID, limit int) ([]models.Publication, error)
	ListAffiliations(ctx context.Context, subjectID id.SubjectID) ([]models.Affiliation, error)

	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SyncStateStore persists orchestrator bookkeeping.
type SyncStateStore interface {
	// GetSyncState returns the idle, never-synced state for unknown subjects.
	GetSyncState(ctx context.Context, subjectID id.SubjectID) (models.SyncState, error)
	SaveSyncState(ctx context.Context, state models.SyncState) error
}

// ProfileStore persists locally edited profiles.
type ProfileStore interface {
	// CreateProfile returns sentinel.ErrConflict when the subject exists.
	CreateProfile(ctx context.Context, p models.Profile) error
	// UpdateProfile returns sentinel.ErrNotFound when the subject is unknown.
	UpdateProfile(ctx context.Context, p models.Profile) error
	GetProfile(ctx context.Context, subjectID id.SubjectID) (*models.Profile, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
}

// Read ordering, shared by every implementation.

func comparePublications(a, b models.Publication) int {
	if c := compareNullableDesc(a.Year, b.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(b.CitedByCount, a.CitedByCount); c != 0 {
		return c
	}
	return cmp.Compare(a.WorkID, b.WorkID)
}

func compareTopics(a, b models.Topic) int {
	if c := cmp.Compare(b.Count, a.Count); c != 0 {
		return c
	}
	return cmp.Compare(a.TopicID, b.TopicID)
}

func compareAffiliations(a, b models.Affiliation) int {
	if c := compareNullableDesc(a.StartYear, b.StartYear); c != 0 {
		return c
	}
	return cmp.Compare(a.InstitutionID, b.InstitutionID)
}

// compareNullableDesc orders larger values first and nils last.
func compareNullableDesc(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}

func sortedPublications(pubs []models.Publication) []models.Publication {
	out := slices.Clone(pubs)
	slices.SortStableFunc(out, comparePublications)
	return out
}

func sortedTopics(topics []models.Topic) []models.Topic {
	out := slices.Clone(topics)
	slices.SortStableFunc(out, compareTopics)
	return out
}

func sortedAffiliations(affs []models.Affiliation) []models.Affiliation {
	out := slices.Clone(affs)
	slices.SortStableFunc(out, compareAffiliations)
	return out
}
