package memcache

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about the connection pool of one server.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: AcquireCount, AcquireWaitCount, CreatedConns, DestroyedConns, AcquireErrors
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that found no idle connection
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts, including dial failures
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalConns  int32 // Connections currently open (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// ClientStats contains counters of client operations.
// GetMulti counts one Get per requested key.
type ClientStats struct {
	Gets     uint64
	GetHits  uint64
	Sets     uint64
	Adds     uint64
	Replaces uint64
	Deletes  uint64
	Incrs    uint64
	Decrs    uint64
	Flushes  uint64
	Errors   uint64 // Operations that returned an error, and servers dropped from a fan-out
}

// poolStatsCollector is updated by channelPool, and by puddlePool for the
// connection lifetime counters. The zero value is ready to use.
type poolStatsCollector struct {
	acquireCount      atomic.Uint64
	acquireWaitCount  atomic.Uint64
	createdConns      atomic.Uint64
	destroyedConns    atomic.Uint64
	acquireErrors     atomic.Uint64
	acquireWaitTimeNs atomic.Uint64

	totalConns  atomic.Int32
	idleConns   atomic.Int32
	activeConns atomic.Int32
}

func (c *poolStatsCollector) recordAcquire() {
	c.acquireCount.Add(1)
}

func (c *poolStatsCollector) recordAcquireWait(d time.Duration) {
	c.acquireWaitCount.Add(1)
	c.acquireWaitTimeNs.Add(uint64(d.Nanoseconds()))
}

// recordCreate counts a new connection handed straight to a caller.
func (c *poolStatsCollector) recordCreate() {
	c.createdConns.Add(1)
	c.totalConns.Add(1)
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordDestroy(active bool) {
	c.destroyedConns.Add(1)
	c.totalConns.Add(-1)
	if active {
		c.activeConns.Add(-1)
	} else {
		c.idleConns.Add(-1)
	}
}

func (c *poolStatsCollector) recordAcquireError() {
	c.acquireErrors.Add(1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	c.idleConns.Add(-1)
	c.activeConns.Add(1)
}

func (c *poolStatsCollector) recordRelease() {
	c.idleConns.Add(1)
	c.activeConns.Add(-1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		AcquireCount:      c.acquireCount.Load(),
		AcquireWaitCount:  c.acquireWaitCount.Load(),
		CreatedConns:      c.createdConns.Load(),
		DestroyedConns:    c.destroyedConns.Load(),
		AcquireErrors:     c.acquireErrors.Load(),
		AcquireWaitTimeNs: c.acquireWaitTimeNs.Load(),
		TotalConns:        c.totalConns.Load(),
		IdleConns:         c.idleConns.Load(),
		ActiveConns:       c.activeConns.Load(),
	}
}

type clientOp int

const (
	opGet clientOp = iota
	opSet
	opAdd
	opReplace
	opDelete
	opIncr
	opDecr
	opFlush
	numOps
)

// clientStatsCollector is updated by Client.
type clientStatsCollector struct {
	ops     [numOps]atomic.Uint64
	getHits atomic.Uint64
	errors  atomic.Uint64
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) record(op clientOp, err error) {
	c.ops[op].Add(1)
	if err != nil {
		c.errors.Add(1)
	}
}

func (c *clientStatsCollector) recordGets(requested, hits int) {
	c.ops[opGet].Add(uint64(requested))
	c.getHits.Add(uint64(hits))
}

func (c *clientStatsCollector) recordError() {
	c.errors.Add(1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Gets:     c.ops[opGet].Load(),
		GetHits:  c.getHits.Load(),
		Sets:     c.ops[opSet].Load(),
		Adds:     c.ops[opAdd].Load(),
		Replaces: c.ops[opReplace].Load(),
		Deletes:  c.ops[opDelete].Load(),
		Incrs:    c.ops[opIncr].Load(),
		Decrs:    c.ops[opDecr].Load(),
		Flushes:  c.ops[opFlush].Load(),
		Errors:   c.errors.Load(),
	}
}
