package hostname

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ci-1", true},
		{"ci-1.example.com", true},
		{"ci-1.example.com.", true},
		{"", false},
		{"localhost", false},
		{"LOCALHOST.localdomain", false},
		{"-bad", false},
		{"bad-", false},
		{"under_score", false},
		{"a..b", false},
		{strings.Repeat("a", 64), false},
		{strings.Repeat("a.", 128), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.name))
		})
	}
}

func TestResolver_Fallbacks(t *testing.T) {
	r := NewResolver("ci-master", logging.NewNopLogger())
	r.lookup = func() (string, error) { return "sys-host", nil }
	assert.Equal(t, "ci-master", r.Hostname())

	r.SetConfigured("not valid!")
	assert.Equal(t, "sys-host", r.Hostname(), "невалидное имя заменяется системным")

	r.SetConfigured("")
	r.lookup = func() (string, error) { return "", errors.New("boom") }
	assert.Equal(t, Unknown, r.Hostname())

	r.SetConfigured("")
	r.lookup = func() (string, error) { return "localhost", nil }
	assert.Equal(t, Unknown, r.Hostname())
}

func TestResolver_Caches(t *testing.T) {
	calls := 0
	r := NewResolver("", logging.NewNopLogger())
	r.lookup = func() (string, error) {
		calls++
		return "sys-host", nil
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, "sys-host", r.Hostname())
	}
	assert.Equal(t, 1, calls)

	r.SetConfigured("")
	r.Hostname()
	assert.Equal(t, 2, calls, "SetConfigured сбрасывает кэш")
}
