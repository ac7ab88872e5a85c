package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "showcase/pkg/domain-errors"
)

// TestParseSubjectID_Normalization validates the invariant that every accepted
// spelling of an author id collapses to a single canonical form.
func TestParseSubjectID_Normalization(t *testing.T) {
	tests := []struct {
		input string
		want  SubjectID
	}{
		{"A123", "A123"},
		{"a123", "A123"},
		{"  A5023888391 ", "A5023888391"},
		{"123", "A123"},
		{"https://openalex.org/A123", "A123"},
		{"HTTPS://OpenAlex.org/a123", "A123"},
		{"openalex.org/a123/", "A123"},
		{"https://api.openalex.org/authors/A42", "A42"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSubjectID(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParseSubjectID_Rejections validates that malformed ids never reach a store.
func TestParseSubjectID_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"letter only", "A"},
		{"two letters", "AB123"},
		{"digits then letter", "123A"},
		{"sql injection", "A1'; DROP TABLE topics;--"},
		{"non-ascii letter", "É123"},
		{"too long", "A" + strings.Repeat("1", 64)},
		{"invalid utf8", string([]byte{0xff, 0xfe})},
		{"url without id", "https://openalex.org/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubjectID(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestMustParseSubjectID(t *testing.T) {
	assert.Equal(t, SubjectID("A7"), MustParseSubjectID("a7"))
	assert.Panics(t, func() { MustParseSubjectID("nope") })
	assert.True(t, SubjectID("").IsNil())
}
