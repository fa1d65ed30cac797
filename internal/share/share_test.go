package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		id     string
		want   string
		ok     bool
	}{
		{
			name:   "plain origin",
			origin: "https://example.com",
			id:     "abc123",
			want:   "https://example.com/results/?id=abc123",
			ok:     true,
		},
		{
			name:   "trailing slash",
			origin: "https://example.com/",
			id:     "abc123",
			want:   "https://example.com/results/?id=abc123",
			ok:     true,
		},
		{
			name:   "escaped id",
			origin: "http://localhost:8080",
			id:     "a b&c",
			want:   "http://localhost:8080/results/?id=a+b%26c",
			ok:     true,
		},
		{
			name:   "missing id",
			origin: "https://example.com",
			id:     "",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := New(tt.origin).URL(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLDeterministic(t *testing.T) {
	f := New("https://example.com")
	a, _ := f.URL("abc123")
	b, _ := f.URL("abc123")
	assert.Equal(t, a, b)
}

func TestTestIDRoundTrip(t *testing.T) {
	u, _ := New("https://example.com").URL("a b&c")
	id, ok := TestID(u)
	assert.True(t, ok)
	assert.Equal(t, "a b&c", id)

	_, ok = TestID("https://example.com/results/")
	assert.False(t, ok)
}
