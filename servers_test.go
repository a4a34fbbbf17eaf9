package memcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseServerSpec(t *testing.T) {
	tests := []struct {
		input    string
		expected ServerSpec
	}{
		{"127.0.0.1:11211", ServerSpec{Addr: "127.0.0.1:11211", Weight: 1}},
		{"cache.local:11211=3", ServerSpec{Addr: "cache.local:11211", Weight: 3}},
		{" [::1]:11211=2 ", ServerSpec{Addr: "[::1]:11211", Weight: 2}},
		{"host:11211=100", ServerSpec{Addr: "host:11211", Weight: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			spec, err := ParseServerSpec(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expected, spec)
		})
	}
}

func TestParseServerSpecInvalid(t *testing.T) {
	for _, input := range []string{
		"nodotport",
		"",
		"host:",
		"host:11211=",
		"host:11211=x",
		"host:11211=0",
		"host:11211=-2",
		"a:b:c",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseServerSpec(input)
			require.ErrorIs(t, err, ErrInvalidServerSpec)

			var specErr *ServerSpecError
			require.ErrorAs(t, err, &specErr)
		})
	}
}

func TestParseServerSpecs(t *testing.T) {
	specs, err := ParseServerSpecs("a:1=2, b:2\tc:3")
	require.NoError(t, err)
	require.Equal(t, []ServerSpec{
		{Addr: "a:1", Weight: 2},
		{Addr: "b:2", Weight: 1},
		{Addr: "c:3", Weight: 1},
	}, specs)

	specs, err = ParseServerSpecs("")
	require.NoError(t, err)
	require.Empty(t, specs)

	_, err = ParseServerSpecs("a:1,bad")
	require.ErrorIs(t, err, ErrInvalidServerSpec)
}

func TestServerSpecNormalize(t *testing.T) {
	tests := []struct {
		spec     ServerSpec
		expected int
	}{
		{ServerSpec{Addr: "a:1"}, 1},
		{ServerSpec{Addr: "a:1", Weight: 1}, 1},
		{ServerSpec{Addr: "a:1", Weight: 15}, 15},
		{ServerSpec{Addr: "a:1", Weight: 16}, 15},
		{ServerSpec{Addr: "a:1", Weight: 1000}, 15},
	}

	for _, tt := range tests {
		weight, err := tt.spec.normalize(DefaultMaxWeight)
		require.NoError(t, err)
		require.Equal(t, tt.expected, weight, tt.spec.String())
	}

	_, err := ServerSpec{Addr: "a:1", Weight: -1}.normalize(DefaultMaxWeight)
	require.ErrorIs(t, err, ErrInvalidServerSpec)
}

func TestServerSpecString(t *testing.T) {
	require.Equal(t, "a:1", ServerSpec{Addr: "a:1"}.String())
	require.Equal(t, "a:1=4", ServerSpec{Addr: "a:1", Weight: 4}.String())
	require.Equal(t, []ServerSpec{{Addr: "a:1", Weight: 1}, {Addr: "b:2", Weight: 1}}, Servers("a:1", "b:2"))
}
