package paymail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Handle tests ---

func TestParseHandle(t *testing.T) {
	h, err := ParseHandle("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", h.Alias)
	assert.Equal(t, "example.com", h.Domain)
	assert.Equal(t, "alice@example.com", h.String())
}

func TestParseHandle_Normalizes(t *testing.T) {
	h, err := ParseHandle("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "alice", h.Alias)
	assert.Equal(t, "example.com", h.Domain)
}

func TestParseHandle_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no at sign", "alice.example.com"},
		{"empty alias", "@example.com"},
		{"empty domain", "alice@"},
		{"two at signs", "alice@bob@example.com"},
		{"domain without tld", "alice@localhost"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHandle(tc.input)
			require.ErrorIs(t, err, ErrInvalidHandle)
		})
	}
}

func TestIsHandle(t *testing.T) {
	assert.True(t, IsHandle("alice@example.com"))
	assert.False(t, IsHandle("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
	assert.False(t, IsHandle(""))
}
