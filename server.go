package memcache

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/pior/memcache-text/text"
	"github.com/sony/gobreaker/v2"
)

// Server is one entry of the server pool: an address, its weight and the
// connections to it. Connections are dialed on first use.
type Server struct {
	addr    string
	weight  int
	pool    Pool
	breaker *gobreaker.CircuitBreaker[bool]
}

// Addr returns the server address, host:port.
func (s *Server) Addr() string {
	return s.addr
}

// Weight is the number of slots the server occupies in the slot table.
func (s *Server) Weight() int {
	return s.weight
}

// ServerPoolStats contains the connection and breaker state of one server.
type ServerPoolStats struct {
	Addr                 string
	Weight               int
	PoolStats            PoolStats
	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

// Stats returns the pool and circuit breaker state of the server.
func (s *Server) Stats() ServerPoolStats {
	stats := ServerPoolStats{
		Addr:      s.addr,
		Weight:    s.weight,
		PoolStats: s.pool.Stats(),
	}
	if s.breaker != nil {
		stats.CircuitBreakerState = s.breaker.State()
		stats.CircuitBreakerCounts = s.breaker.Counts()
	}
	return stats
}

// execute runs one request/reply exchange on a pooled connection of s.
//
// The connection is destroyed when the error leaves the stream in an unknown
// state and released otherwise. When a circuit breaker is configured, only
// failures that are not replies from the server count against it.
func execute[T any](ctx context.Context, s *Server, req *text.Request, read func(*bufio.Reader) (T, error)) (T, error) {
	if s.breaker == nil {
		return executeDirect(ctx, s.pool, req, read)
	}

	var (
		value   T
		replied error
	)
	_, err := s.breaker.Execute(func() (bool, error) {
		var err error
		value, err = executeDirect(ctx, s.pool, req, read)
		if err != nil && isReplyError(err) {
			replied = err
			return true, nil
		}
		return err == nil, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value, replied
}

func executeDirect[T any](ctx context.Context, pool Pool, req *text.Request, read func(*bufio.Reader) (T, error)) (T, error) {
	var zero T

	resource, err := pool.Acquire(ctx)
	if err != nil {
		return zero, err
	}

	value, err := roundTrip(ctx, resource.Value(), req, read)
	if err != nil {
		if text.ShouldCloseConnection(err) {
			resource.Destroy()
		} else {
			resource.Release()
		}
		return zero, err
	}

	resource.Release()
	return value, nil
}

// isReplyError reports whether err came from a well-formed server reply or
// from client-side validation, as opposed to a broken transport.
func isReplyError(err error) bool {
	var keyErr *text.InvalidKeyError
	return text.IsServerReported(err) || errors.As(err, &keyErr)
}

// checkIdle destroys idle connections exceeding the lifetime limits and
// returns the others to the pool.
func (s *Server) checkIdle(maxLifetime, maxIdle time.Duration) {
	now := time.Now()

	for _, res := range s.pool.AcquireAllIdle() {
		switch {
		case !res.Value().Healthy():
			res.Destroy()
		case maxLifetime > 0 && now.Sub(res.CreationTime()) > maxLifetime:
			res.Destroy()
		case maxIdle > 0 && res.IdleDuration() > maxIdle:
			res.Destroy()
		default:
			res.ReleaseUnused()
		}
	}
}

// disconnect closes every idle connection and returns how many were closed.
// The server stays usable.
func (s *Server) disconnect() int {
	return s.pool.CloseIdle()
}
