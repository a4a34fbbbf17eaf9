package memcache

import (
	"context"
	"errors"
	"time"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("memcache: pool closed")

// Resource is a pooled connection.
// Release returns it to the pool, Destroy closes it.
type Resource interface {
	Value() *Connection
	Release()
	ReleaseUnused()
	Destroy()
	CreationTime() time.Time
	IdleDuration() time.Duration
}

// Pool holds the connections to a single server.
type Pool interface {
	Acquire(ctx context.Context) (Resource, error)
	AcquireAllIdle() []Resource
	CloseIdle() int
	Close()
	Stats() PoolStats
}

// PoolFactory creates a Pool of at most maxSize connections built by constructor.
// NewPuddlePool and NewChannelPool are the two implementations provided.
type PoolFactory func(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error)
