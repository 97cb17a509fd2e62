package geo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEmptyPathDisables(t *testing.T) {
	r, err := Open("  ")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, ok := r.Lookup("10.0.0.1")
	assert.False(t, ok)
	assert.NoError(t, r.Close())
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open geoip database")
}

func TestParseIP(t *testing.T) {
	cases := map[string]string{
		"10.0.0.1":          "10.0.0.1",
		" 10.0.0.1:5001 ":   "10.0.0.1",
		"[2001:db8::1]:443": "2001:db8::1",
		"2001:db8::1":       "2001:db8::1",
	}
	for in, want := range cases {
		ip := parseIP(in)
		require.NotNil(t, ip, in)
		assert.Equal(t, want, ip.String(), in)
	}
	assert.Nil(t, parseIP("not-an-ip"))
}
