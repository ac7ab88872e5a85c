package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "blank entries dropped",
			input:    []string{"", "   ", "\t"},
			expected: []string{},
		},
		{
			name:     "institution names trimmed and deduplicated in order",
			input:    []string{"  MIT ", "ETH Zürich", "MIT", "", "ETH Zürich "},
			expected: []string{"MIT", "ETH Zürich"},
		},
		{
			name:     "case is significant",
			input:    []string{"Ada Lovelace", "ada lovelace"},
			expected: []string{"Ada Lovelace", "ada lovelace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
