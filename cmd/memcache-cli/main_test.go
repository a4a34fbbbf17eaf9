package main

import (
	"testing"

	memcache "github.com/pior/memcache-text"
	"github.com/pior/memcache-text/internal/testutils"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestCommands(t *testing.T) {
	server1 := testutils.NewServer(t)
	server2 := testutils.NewServer(t)
	servers := server1.Addr() + "," + server2.Addr() + "=2"

	require.NoError(t, execute(t, "--servers", servers, "set", "foo", "bar", "--flags", "3"))

	value, flags, ok := server1.Peek("foo")
	if !ok {
		value, flags, ok = server2.Peek("foo")
	}
	require.True(t, ok)
	assert.Equal(t, "bar", string(value))
	assert.Equal(t, uint32(3), flags)

	require.NoError(t, execute(t, "--servers", servers, "set", "n", "1"))
	require.NoError(t, execute(t, "--servers", servers, "incr", "n", "5"))
	require.NoError(t, execute(t, "--servers", servers, "decr", "n"))
	require.NoError(t, execute(t, "--servers", servers, "get", "n"))
	require.NoError(t, execute(t, "--servers", servers, "mget", "foo", "n", "missing"))
	require.NoError(t, execute(t, "--servers", servers, "delete", "foo"))
	require.NoError(t, execute(t, "--servers", servers, "stats"))
	require.NoError(t, execute(t, "--servers", servers, "pool"))
	require.NoError(t, execute(t, "--servers", servers, "ping"))
	require.NoError(t, execute(t, "--servers", servers, "flush"))

	assert.Zero(t, server1.Len())
	assert.Zero(t, server2.Len())
}

func TestCommandsInvalidServers(t *testing.T) {
	err := execute(t, "--servers", "nodotport", "get", "foo")
	require.ErrorIs(t, err, memcache.ErrInvalidServerSpec)
}

func TestClientConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("timeout", "250ms")
	viper.Set("max-weight", 4)
	viper.Set("max-conns", 2)
	viper.Set("hash", "crc32")
	viper.Set("slot", "jump")
	viper.Set("circuit-breaker", true)

	config, err := clientConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, config.MaxWeight)
	assert.Equal(t, int32(2), config.MaxSize)
	assert.Equal(t, "250ms", config.Timeout.String())
	assert.NotNil(t, config.Hash)
	assert.NotNil(t, config.SelectSlot)
	assert.NotNil(t, config.NewCircuitBreaker)

	viper.Set("hash", "md5")
	_, err = clientConfig()
	require.Error(t, err)

	viper.Set("hash", "xxh3")
	viper.Set("slot", "ring")
	_, err = clientConfig()
	require.Error(t, err)
}
