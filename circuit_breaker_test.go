package memcache

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/pior/memcache-text/internal/testutils"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBreakerClient(t *testing.T, addrs ...string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.SetServers(Servers(addrs...)...))
	return client
}

func TestCircuitBreakerOpensOnTransportFailures(t *testing.T) {
	client := newBreakerClient(t, closedAddr(t))
	ctx := context.Background()

	for range 3 {
		_, err := client.Get(ctx, "foo")
		var connectErr *ConnectError
		require.ErrorAs(t, err, &connectErr)
	}

	_, err := client.Get(ctx, "foo")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	stats := client.AllPoolStats()[0]
	assert.Equal(t, gobreaker.StateOpen, stats.CircuitBreakerState)
}

func TestCircuitBreakerIgnoresReplies(t *testing.T) {
	server := testutils.NewServer(t)
	client := newBreakerClient(t, server.Addr())
	ctx := context.Background()

	for range 5 {
		item, err := client.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, item.Found)

		_, err = client.Replace(ctx, Item{Key: "missing", Value: []byte("x")})
		require.NoError(t, err)

		_, found, err := client.Incr(ctx, "missing", 1)
		require.NoError(t, err)
		assert.False(t, found)
	}

	server.SetIntercept(func(line string) (string, bool) {
		return "SERVER_ERROR out of memory\r\n", true
	})
	for range 5 {
		_, err := client.Set(ctx, Item{Key: "foo", Value: []byte("x")})
		require.Error(t, err)
	}

	stats := client.AllPoolStats()[0]
	assert.Equal(t, gobreaker.StateClosed, stats.CircuitBreakerState)
	assert.Zero(t, stats.CircuitBreakerCounts.TotalFailures)
}

func TestCircuitBreakerGetMulti(t *testing.T) {
	up := testutils.NewServer(t)
	down := closedAddr(t)
	client := newBreakerClient(t, up.Addr(), down)
	ctx := context.Background()

	keyUp := keyOn(t, client, "up", up.Addr())
	keyDown := keyOn(t, client, "down", down)
	up.Put(keyUp, []byte("v"), 0)

	for range 5 {
		items, err := client.GetMulti(ctx, []string{keyUp, keyDown})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}

	stats := client.AllPoolStats()
	assert.Equal(t, gobreaker.StateClosed, stats[0].CircuitBreakerState)
	assert.Equal(t, gobreaker.StateOpen, stats[1].CircuitBreakerState)
}

func TestCircuitBreakerPolicy(t *testing.T) {
	var logs bytes.Buffer
	policy := CircuitBreakerPolicy{
		MaxRequests:  1,
		Timeout:      20 * time.Millisecond,
		MinRequests:  2,
		FailureRatio: 1,
		Logger:       slog.New(slog.NewTextHandler(&logs, nil)),
	}

	server := testutils.NewServer(t)
	client, err := NewClient(Config{NewCircuitBreaker: policy.New})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.SetServers(Servers(server.Addr())...))
	ctx := context.Background()

	server.SetIntercept(func(line string) (string, bool) {
		return "garbage\r\n", true
	})

	for range 2 {
		_, err := client.Get(ctx, "foo")
		require.Error(t, err)
	}
	_, err = client.Get(ctx, "foo")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, logs.String(), "to=open")

	// After Timeout a successful trial request closes the breaker.
	server.SetIntercept(nil)
	require.Eventually(t, func() bool {
		_, err := client.Get(ctx, "foo")
		return err == nil
	}, waitFor, tick)
	assert.Equal(t, gobreaker.StateClosed, client.AllPoolStats()[0].CircuitBreakerState)
	assert.Contains(t, logs.String(), "to=closed")
}
