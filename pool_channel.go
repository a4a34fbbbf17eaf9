package memcache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// NewChannelPool creates a connection pool using buffered channels for the idle
// list and the capacity. It has a smaller footprint than the puddle pool.
func NewChannelPool(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error) {
	if maxSize < 1 {
		return nil, errors.New("memcache: pool max size must be at least 1")
	}
	return &channelPool{
		constructor: constructor,
		idle:        make(chan *channelResource, maxSize),
		slots:       make(chan struct{}, maxSize),
	}, nil
}

type channelResource struct {
	conn         *Connection
	pool         *channelPool
	creationTime time.Time
	lastUsedTime time.Time
}

func (r *channelResource) Value() *Connection {
	return r.conn
}

func (r *channelResource) Release() {
	r.lastUsedTime = time.Now()
	r.pool.put(r)
}

// ReleaseUnused returns the connection without refreshing its idle time.
func (r *channelResource) ReleaseUnused() {
	r.pool.put(r)
}

func (r *channelResource) Destroy() {
	_ = r.conn.Close()
	<-r.pool.slots
	r.pool.stats.recordDestroy(true)
}

func (r *channelResource) CreationTime() time.Time {
	return r.creationTime
}

func (r *channelResource) IdleDuration() time.Duration {
	return time.Since(r.lastUsedTime)
}

// channelPool holds one token in slots per live connection.
type channelPool struct {
	constructor func(ctx context.Context) (*Connection, error)

	mu     sync.Mutex // guards closed and sends on idle
	idle   chan *channelResource
	slots  chan struct{}
	closed bool

	stats poolStatsCollector
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	select {
	case res, ok := <-p.idle:
		return p.fromIdle(res, ok)
	default:
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed
	}

	waitStart := time.Now()
	select {
	case res, ok := <-p.idle:
		p.stats.recordAcquireWait(time.Since(waitStart))
		return p.fromIdle(res, ok)
	case p.slots <- struct{}{}:
		return p.create(ctx)
	case <-ctx.Done():
		p.stats.recordAcquireError()
		return nil, ctx.Err()
	}
}

func (p *channelPool) fromIdle(res *channelResource, ok bool) (Resource, error) {
	if !ok {
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed
	}
	p.stats.recordAcquireFromIdle()
	return res, nil
}

func (p *channelPool) create(ctx context.Context) (Resource, error) {
	conn, err := p.constructor(ctx)
	if err != nil {
		<-p.slots
		p.stats.recordAcquireError()
		return nil, err
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		_ = conn.Close()
		<-p.slots
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed
	}

	p.stats.recordCreate()
	now := time.Now()
	return &channelResource{
		conn:         conn,
		pool:         p,
		creationTime: now,
		lastUsedTime: now,
	}, nil
}

func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = res.conn.Close()
		<-p.slots
		p.stats.recordDestroy(true)
		return
	}

	// idle has room for every live connection, this send cannot block.
	p.idle <- res
	p.stats.recordRelease()
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource
	for {
		select {
		case res, ok := <-p.idle:
			if !ok {
				return idle
			}
			p.stats.recordAcquireFromIdle()
			idle = append(idle, res)
		default:
			return idle
		}
	}
}

// CloseIdle destroys the idle connections. Acquired ones are left alone.
func (p *channelPool) CloseIdle() int {
	idle := p.AcquireAllIdle()
	for _, res := range idle {
		res.Destroy()
	}
	return len(idle)
}

// Close closes idle connections. Acquired connections are closed when released.
func (p *channelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	close(p.idle)
	for res := range p.idle {
		_ = res.conn.Close()
		<-p.slots
		p.stats.recordDestroy(false)
	}
}

func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
