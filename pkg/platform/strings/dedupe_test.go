package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "blank", input: "  ", want: nil},
		{name: "single origin", input: "https://app.example.com", want: []string{"https://app.example.com"}},
		{
			name:  "case-insensitive duplicates",
			input: "https://A.example.com, https://b.example.com,https://a.example.com",
			want:  []string{"https://a.example.com", "https://b.example.com"},
		},
		{
			name:  "trailing slash",
			input: "https://a.example.com/,https://a.example.com",
			want:  []string{"https://a.example.com"},
		},
		{name: "empty entries", input: ",,*,", want: []string{"*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.input))
		})
	}
}

func TestNormalizeList(t *testing.T) {
	assert.Nil(t, NormalizeList(nil))
	assert.Nil(t, NormalizeList([]string{"", " / "}))
	assert.Equal(t, []string{"http://localhost:3000"}, NormalizeList([]string{" HTTP://localhost:3000/ "}))
}
