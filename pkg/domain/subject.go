package domain

import (
	"strings"
	"unicode/utf8"

	dErrors "showcase/pkg/domain-errors"
)

// SubjectID identifies a researcher in the upstream bibliographic catalogue:
// one uppercase letter followed by digits, e.g. "A5023888391".
//
// Construct values with ParseSubjectID; every cache operation expects the
// normalized form.
type SubjectID string

// DefaultSubjectPrefix is prepended when a bare numeric identifier is given.
const DefaultSubjectPrefix = 'A'

const maxSubjectIDLength = 32

var subjectURLPrefixes = []string{
	"api.openalex.org/authors/",
	"openalex.org/authors/",
	"api.openalex.org/",
	"openalex.org/",
}

// ParseSubjectID normalizes s into a SubjectID. It accepts the bare id in any
// case ("a123"), a numeric id ("123", prefixed with A), and catalogue URLs
// ("https://openalex.org/A123").
func ParseSubjectID(s string) (SubjectID, error) {
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id must be valid UTF-8")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}

	lower := strings.ToLower(s)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, scheme) {
			s, lower = s[len(scheme):], lower[len(scheme):]
			break
		}
	}
	for _, prefix := range subjectURLPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimSuffix(s, "/")

	if len(s) == 0 || len(s) > maxSubjectIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id has invalid length")
	}
	if isDigits(s) {
		return SubjectID(string(DefaultSubjectPrefix) + s), nil
	}

	head := s[0]
	if !isASCIILetter(head) || len(s) < 2 || !isDigits(s[1:]) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id must be a letter followed by digits")
	}
	return SubjectID(strings.ToUpper(string(head)) + s[1:]), nil
}

// MustParseSubjectID is ParseSubjectID for constants and tests.
func MustParseSubjectID(s string) SubjectID {
	id, err := ParseSubjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id SubjectID) String() string {
	return string(id)
}

// IsNil reports whether the id is empty.
func (id SubjectID) IsNil() bool {
	return id == ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
