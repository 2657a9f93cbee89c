package domains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"Example.COM", "example.com"},
		{"example.com:8080", "example.com"},
		{"example.com.", "example.com"},
		{"www.Example.com.:443", "www.example.com"},
		{"bücher.example", "xn--bcher-kva.example"},
		{"  acme.wondrousdigital.com  ", "acme.wondrousdigital.com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeHost(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeHost_Malformed(t *testing.T) {
	for _, in := range []string{"", ":8080", ".", "127.0.0.1", "127.0.0.1:3000", "[::1]:80", "[::1]", "exa mple.com", "a..b"} {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizeHost(in)
			assert.ErrorIs(t, err, ErrMalformedHost)
		})
	}
}

func TestToggleWWW(t *testing.T) {
	assert.Equal(t, "www.example.com", toggleWWW("example.com"))
	assert.Equal(t, "example.com", toggleWWW("www.example.com"))
}

func TestIsSubdomainOf(t *testing.T) {
	assert.True(t, isSubdomainOf("app.wondrous.io", "app.wondrous.io"))
	assert.True(t, isSubdomainOf("eu.app.wondrous.io", "app.wondrous.io"))
	assert.False(t, isSubdomainOf("evilapp.wondrous.io", "app.wondrous.io"))
	assert.False(t, isSubdomainOf("wondrous.io", "app.wondrous.io"))
}
