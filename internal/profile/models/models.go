package models

import (
	"encoding/json"
	"time"

	id "showcase/pkg/domain"
)

// StatsKind names a stats blob. The set is open; each kind is replaced as a whole.
type StatsKind string

const (
	StatsKindProfile StatsKind = "profile-stats"
)

// CachedStats is one opaque stats blob for a subject.
type CachedStats struct {
	SubjectID   id.SubjectID    `json:"subjectId"`
	Kind        StatsKind       `json:"kind"`
	Data        json.RawMessage `json:"data"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// ProfileStats is the payload stored under StatsKindProfile.
type ProfileStats struct {
	DisplayName          string      `json:"displayName"`
	ORCID                string      `json:"orcid,omitempty"`
	WorksCount           int         `json:"worksCount"`
	CitedByCount         int         `json:"citedByCount"`
	HIndex               int         `json:"hIndex"`
	I10Index             int         `json:"i10Index"`
	TwoYearMeanCitedness float64     `json:"twoYearMeanCitedness"`
	CountsByYear         []YearCount `json:"countsByYear"`
	PublicationYears     *YearRange  `json:"publicationYears"`
	LastInstitutions     []string    `json:"lastKnownInstitutions"`
	AltNames             []string    `json:"alternativeNames,omitempty"`
}

// YearCount is the works/citations tally for one year.
type YearCount struct {
	Year         int `json:"year"`
	WorksCount   int `json:"worksCount"`
	CitedByCount int `json:"citedByCount"`
}

// YearRange is an inclusive span of years. A nil *YearRange means no record
// carried a year.
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Topic is a research topic attributed to a subject.
type Topic struct {
	SubjectID   id.SubjectID `json:"subjectId"`
	TopicID     string       `json:"topicId"`
	DisplayName string       `json:"displayName"`
	Count       int          `json:"count"`
	Subfield    string       `json:"subfield,omitempty"`
	Field       string       `json:"field,omitempty"`
	Domain      string       `json:"domain,omitempty"`
}

// Publication is one work authored by a subject.
type Publication struct {
	SubjectID       id.SubjectID `json:"subjectId"`
	WorkID          string       `json:"workId"`
	Title           string       `json:"title"`
	DOI             string       `json:"doi,omitempty"`
	Year            *int         `json:"year"`
	PublicationDate string       `json:"publicationDate,omitempty"`
	CitedByCount    int          `json:"citedByCount"`
	Type            string       `json:"type,omitempty"`
	Venue           string       `json:"venue,omitempty"`
	IsOpenAccess    bool         `json:"isOpenAccess"`
	OAURL           string       `json:"oaUrl,omitempty"`
	AuthorCount     int          `json:"authorCount"`
}

// Affiliation is an institution a subject was affiliated with.
type Affiliation struct {
	SubjectID     id.SubjectID `json:"subjectId"`
	InstitutionID string       `json:"institutionId"`
	DisplayName   string       `json:"displayName"`
	CountryCode   string       `json:"countryCode,omitempty"`
	Type          string       `json:"type,omitempty"`
	ROR           string       `json:"ror,omitempty"`
	StartYear     *int         `json:"startYear"`
	EndYear       *int         `json:"endYear"`
	Years         []int        `json:"years"`
}

// SyncStatus is the per-subject state machine position.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusRunning SyncStatus = "running"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncState is the persisted sync bookkeeping for one subject. LastSyncedAt
// only moves on success.
type SyncState struct {
	SubjectID     id.SubjectID `json:"subjectId"`
	Status        SyncStatus   `json:"status"`
	LastSyncedAt  *time.Time   `json:"lastSyncedAt"`
	LastAttemptAt *time.Time   `json:"lastAttemptAt"`
	LastError     string       `json:"lastError,omitempty"`
	RunID         string       `json:"runId,omitempty"`
}

// NewSyncState returns the idle, never-synced state.
func NewSyncState(subjectID id.SubjectID) SyncState {
	return SyncState{SubjectID: subjectID, Status: SyncStatusIdle}
}

// UpdateType says why a ChangeEvent was published.
type UpdateType string

const (
	UpdateProfile UpdateType = "profile"
	UpdateSync    UpdateType = "sync"
	UpdateCreate  UpdateType = "create"
)

// ChangeEvent notifies subscribers that a subject's cached data changed.
type ChangeEvent struct {
	SubjectID  id.SubjectID `json:"openalexId"`
	UpdateType UpdateType   `json:"updateType"`
	Timestamp  time.Time    `json:"timestamp"`
}

// CachedView is the read model served to the public profile page.
type CachedView struct {
	SubjectID    id.SubjectID  `json:"subjectId"`
	Stats        *CachedStats  `json:"stats"`
	Topics       []Topic       `json:"topics"`
	Publications []Publication `json:"publications"`
	Affiliations []Affiliation `json:"affiliations"`
	LastSynced   *time.Time    `json:"lastSynced"`
	Status       SyncStatus    `json:"status"`
}

// EmptyView is the view of a never-synced subject: empty collections, no
// stats, nil LastSynced.
func EmptyView(subjectID id.SubjectID) *CachedView {
	return &CachedView{
		SubjectID:    subjectID,
		Topics:       []Topic{},
		Publications: []Publication{},
		Affiliations: []Affiliation{},
		Status:       SyncStatusIdle,
	}
}

// Profile is the locally edited researcher profile.
type Profile struct {
	SubjectID   id.SubjectID `json:"subjectId"`
	DisplayName string       `json:"displayName"`
	Bio         string       `json:"bio,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
