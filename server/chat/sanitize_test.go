package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "สวัสดีค่ะ",
			expected: "สวัสดีค่ะ",
		},
		{
			name:     "bold and heading markers stripped",
			input:    "**Hello** #World_",
			expected: "Hello World",
		},
		{
			name:     "double underscore and double hash stripped",
			input:    "__bold__ and ## heading",
			expected: "bold and  heading",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  spaced out  ",
			expected: "spaced out",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only markers",
			input:    "**__##",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeReply(tt.input))
		})
	}
}
