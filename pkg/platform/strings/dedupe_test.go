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
		{"nil slice", nil, nil},
		{"empty slice", []string{}, []string{}},
		{"trims whitespace", []string{"  face  ", "signature  "}, []string{"face", "signature"}},
		{"removes duplicates preserving order", []string{"face", "emblem", "face", "signature", "emblem"}, []string{"face", "emblem", "signature"}},
		{"removes empty strings", []string{"face", "", "  ", "signature"}, []string{"face", "signature"}},
		{"preserves case", []string{"Face", "face"}, []string{"Face", "face"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
