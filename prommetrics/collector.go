// Package prommetrics exports the statistics of a memcache.Client to Prometheus.
//
//	registry.MustRegister(prommetrics.NewCollector(client, "cache"))
package prommetrics

import (
	memcache "github.com/pior/memcache-text"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// Source is the part of memcache.Client read by the collector.
type Source interface {
	Stats() memcache.ClientStats
	AllPoolStats() []memcache.ServerPoolStats
}

// Collector is a prometheus.Collector reading a client's counters at scrape time.
type Collector struct {
	source Source

	operations    *prometheus.Desc
	getHits       *prometheus.Desc
	errors        *prometheus.Desc
	connections   *prometheus.Desc
	connsCreated  *prometheus.Desc
	connsDestroy  *prometheus.Desc
	acquires      *prometheus.Desc
	acquireWaits  *prometheus.Desc
	acquireErrors *prometheus.Desc
	acquireWait   *prometheus.Desc
	serverWeight  *prometheus.Desc
	circuitState  *prometheus.Desc
	circuitFails  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for source. The client label distinguishes
// several clients registered on the same registry.
func NewCollector(source Source, client string) *Collector {
	constLabels := prometheus.Labels{"client": client}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc("memcache_"+name, help, labels, constLabels)
	}

	return &Collector{
		source:        source,
		operations:    desc("operations_total", "Total number of operations by command", "command"),
		getHits:       desc("get_hits_total", "Keys found by get operations"),
		errors:        desc("errors_total", "Operations that failed and servers skipped by fan-out operations"),
		connections:   desc("pool_connections", "Open connections by state", "server", "state"),
		connsCreated:  desc("pool_connections_created_total", "Connections created", "server"),
		connsDestroy:  desc("pool_connections_destroyed_total", "Connections destroyed", "server"),
		acquires:      desc("pool_acquires_total", "Connection acquire attempts", "server"),
		acquireWaits:  desc("pool_acquire_waits_total", "Acquires that found no idle connection", "server"),
		acquireErrors: desc("pool_acquire_errors_total", "Failed connection acquires, including dial failures", "server"),
		acquireWait:   desc("pool_acquire_wait_seconds_total", "Time spent waiting for a connection", "server"),
		serverWeight:  desc("server_weight", "Number of slots of the server in the slot table", "server"),
		circuitState:  desc("circuit_breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open)", "server"),
		circuitFails:  desc("circuit_breaker_failures", "Circuit breaker failure counts in the current interval", "server", "type"),
	}
}

// Describe sends every descriptor up front: per-server metrics appear only once
// servers are configured.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.operations, c.getHits, c.errors,
		c.connections, c.connsCreated, c.connsDestroy,
		c.acquires, c.acquireWaits, c.acquireErrors, c.acquireWait,
		c.serverWeight, c.circuitState, c.circuitFails,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	counter := func(desc *prometheus.Desc, value uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), labels...)
	}
	gauge := func(desc *prometheus.Desc, value float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, labels...)
	}

	counter(c.operations, stats.Gets, "get")
	counter(c.operations, stats.Sets, "set")
	counter(c.operations, stats.Adds, "add")
	counter(c.operations, stats.Replaces, "replace")
	counter(c.operations, stats.Deletes, "delete")
	counter(c.operations, stats.Incrs, "incr")
	counter(c.operations, stats.Decrs, "decr")
	counter(c.operations, stats.Flushes, "flush_all")
	counter(c.getHits, stats.GetHits)
	counter(c.errors, stats.Errors)

	for _, s := range c.source.AllPoolStats() {
		p := s.PoolStats
		gauge(c.connections, float64(p.ActiveConns), s.Addr, "active")
		gauge(c.connections, float64(p.IdleConns), s.Addr, "idle")
		counter(c.connsCreated, p.CreatedConns, s.Addr)
		counter(c.connsDestroy, p.DestroyedConns, s.Addr)
		counter(c.acquires, p.AcquireCount, s.Addr)
		counter(c.acquireWaits, p.AcquireWaitCount, s.Addr)
		counter(c.acquireErrors, p.AcquireErrors, s.Addr)
		ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, float64(p.AcquireWaitTimeNs)/1e9, s.Addr)
		gauge(c.serverWeight, float64(s.Weight), s.Addr)

		gauge(c.circuitState, circuitStateValue(s.CircuitBreakerState), s.Addr)
		gauge(c.circuitFails, float64(s.CircuitBreakerCounts.TotalFailures), s.Addr, "total")
		gauge(c.circuitFails, float64(s.CircuitBreakerCounts.ConsecutiveFailures), s.Addr, "consecutive")
	}
}

func circuitStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
