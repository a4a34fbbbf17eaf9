package memcache

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/pior/memcache-text/internal/testutils"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a client configured with the given fake servers, weight 1 each.
func newTestClient(t testing.TB, config Config, servers ...*testutils.Server) *Client {
	t.Helper()

	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	specs := make([]ServerSpec, len(servers))
	for i, s := range servers {
		specs[i] = ServerSpec{Addr: s.Addr(), Weight: 1}
	}
	require.NoError(t, client.SetServers(specs...))
	return client
}

// closedAddr returns a local address nothing listens on.
func closedAddr(t testing.TB) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

// keyOn returns a key with the given prefix that resolves to server addr.
func keyOn(t testing.TB, client *Client, prefix, addr string) string {
	t.Helper()

	for i := range 10000 {
		key := prefix + "-" + strconv.Itoa(i)
		server, err := client.servers.Resolve(key)
		require.NoError(t, err)
		if server.Addr() == addr {
			return key
		}
	}
	t.Fatalf("no key found for %s", addr)
	return ""
}

// mockConstructor makes every dial return a connection over conn.
func mockConstructor(conn net.Conn) func(ctx context.Context, addr string) (*Connection, error) {
	return func(ctx context.Context, addr string) (*Connection, error) {
		return NewConnection(conn, 0), nil
	}
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)
