package handler

import (
	"showcase/internal/profile/models"
	id "showcase/pkg/domain"
)

// ProfileListResponse is returned by GET /profiles.
type ProfileListResponse struct {
	Profiles []models.Profile `json:"profiles"`
	Total    int              `json:"total"`
}

// SyncAcceptedResponse is returned when a sync was started in the background.
type SyncAcceptedResponse struct {
	SubjectID id.SubjectID `json:"subjectId"`
	Status    string       `json:"status"`
}
