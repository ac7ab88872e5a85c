package handler

import (
	"strings"
	"unicode/utf8"

	id "showcase/pkg/domain"
	dErrors "showcase/pkg/domain-errors"
)

const (
	maxDisplayNameLength = 200
	maxBioLength         = 4000
)

// CreateProfileRequest is the body of POST /admin/profiles.
type CreateProfileRequest struct {
	OpenalexID  string `json:"openalexId"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`

	// Parsed values (populated by Validate)
	parsedSubjectID id.SubjectID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.OpenalexID == "" {
		return dErrors.New(dErrors.CodeValidation, "openalexId is required")
	}
	subjectID, err := id.ParseSubjectID(r.OpenalexID)
	if err != nil {
		return err
	}
	r.parsedSubjectID = subjectID
	return validateProfileFields(&r.DisplayName, &r.Bio)
}

// ParsedSubjectID returns the validated subject id.
func (r *CreateProfileRequest) ParsedSubjectID() id.SubjectID {
	return r.parsedSubjectID
}

// UpdateProfileRequest is the body of PUT /admin/profiles/{subjectID}.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return validateProfileFields(&r.DisplayName, &r.Bio)
}

func validateProfileFields(displayName, bio *string) error {
	*displayName = strings.TrimSpace(*displayName)
	*bio = strings.TrimSpace(*bio)
	if *displayName == "" {
		return dErrors.New(dErrors.CodeValidation, "displayName is required")
	}
	if utf8.RuneCountInString(*displayName) > maxDisplayNameLength {
		return dErrors.New(dErrors.CodeValidation, "displayName is too long")
	}
	if utf8.RuneCountInString(*bio) > maxBioLength {
		return dErrors.New(dErrors.CodeValidation, "bio is too long")
	}
	return nil
}
