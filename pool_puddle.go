package memcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/puddle/v2"
)

// NewPuddlePool creates a connection pool backed by jackc/puddle.
// This is the default pool implementation.
func NewPuddlePool(dial func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error) {
	p := &puddlePool{dial: dial}

	pool, err := puddle.NewPool(&puddle.Config[*Connection]{
		Constructor: p.connect,
		Destructor:  p.disconnect,
		MaxSize:     maxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("memcache: puddle pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// puddlePool reads its gauges and acquire counters from puddle. Only the
// connection lifetime counters of stats are used.
type puddlePool struct {
	pool  *puddle.Pool[*Connection]
	dial  func(ctx context.Context) (*Connection, error)
	stats poolStatsCollector
}

func (p *puddlePool) connect(ctx context.Context) (*Connection, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.stats.createdConns.Add(1)
	return conn, nil
}

func (p *puddlePool) disconnect(conn *Connection) {
	p.stats.destroyedConns.Add(1)
	_ = conn.Close()
}

func (p *puddlePool) Acquire(ctx context.Context) (Resource, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		p.stats.recordAcquireError()
		if errors.Is(err, puddle.ErrClosedPool) {
			return nil, ErrPoolClosed
		}
		return nil, err
	}
	return res, nil
}

func (p *puddlePool) AcquireAllIdle() []Resource {
	idle := p.pool.AcquireAllIdle()
	resources := make([]Resource, len(idle))
	for i, res := range idle {
		resources[i] = res
	}
	return resources
}

// CloseIdle destroys the idle connections. Acquired ones are left alone.
// The sockets are closed before it returns, puddle finishes the destruction
// in the background.
func (p *puddlePool) CloseIdle() int {
	idle := p.pool.AcquireAllIdle()
	for _, res := range idle {
		_ = res.Value().Close()
		res.Destroy()
	}
	return len(idle)
}

// Close destroys idle connections and waits for acquired ones to be returned.
func (p *puddlePool) Close() {
	p.pool.Close()
}

func (p *puddlePool) Stats() PoolStats {
	s := p.pool.Stat()

	stats := p.stats.snapshot()
	stats.TotalConns = s.TotalResources()
	stats.IdleConns = s.IdleResources()
	stats.ActiveConns = s.AcquiredResources()
	stats.AcquireCount = uint64(s.AcquireCount())
	stats.AcquireWaitCount = uint64(s.EmptyAcquireCount())
	stats.AcquireWaitTimeNs = uint64(s.EmptyAcquireWaitTime().Nanoseconds())
	return stats
}
