package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidVideoId(t *testing.T) {
	assert.True(t, ValidVideoId("dQw4w9WgXcQ"))
	assert.True(t, ValidVideoId("a-b_c1D2e3F"))
	assert.False(t, ValidVideoId(""))
	assert.False(t, ValidVideoId("tooshort"))
	assert.False(t, ValidVideoId("dQw4w9WgXcQQ"), "12 characters")
	assert.False(t, ValidVideoId("dQw4w9WgXc!"), "invalid charset")
}

func TestExtractVideoId(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?t=10&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"not a video", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractVideoId(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
