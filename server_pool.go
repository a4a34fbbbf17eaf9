package memcache

import (
	"log/slog"
	"sync"

	"github.com/pior/memcache-text/internal"
)

// ServerPool is the ordered list of servers and the weighted slot table used to
// map keys to them. Server i occupies Weight(i) consecutive slots.
type ServerPool struct {
	hash       HashFunc
	selectSlot SlotSelector
	maxWeight  int
	newServer  func(addr string, weight int) (*Server, error)
	logger     *slog.Logger

	mu      sync.RWMutex
	servers []*Server
	slots   []int
}

// Rebuild replaces the servers of the pool.
//
// Concurrent operations see either the previous or the new pool. Connections to
// the previous servers are closed. When a spec is invalid the pool is left
// empty and the error names the entry. An empty specs list empties the pool.
func (p *ServerPool) Rebuild(specs []ServerSpec) error {
	servers, slots, err := p.build(specs)
	if err != nil {
		p.Close()
		return err
	}

	p.mu.Lock()
	previous := p.servers
	p.servers = servers
	p.slots = slots
	p.mu.Unlock()

	closeServers(previous)

	p.logger.Info("memcache: server pool rebuilt", "servers", len(servers), "slots", len(slots))
	return nil
}

func (p *ServerPool) build(specs []ServerSpec) ([]*Server, []int, error) {
	servers := make([]*Server, 0, len(specs))
	weights := make([]int, 0, len(specs))

	for _, spec := range specs {
		weight, err := spec.normalize(p.maxWeight)
		if err != nil {
			closeServers(servers)
			return nil, nil, err
		}

		server, err := p.newServer(spec.Addr, weight)
		if err != nil {
			closeServers(servers)
			return nil, nil, err
		}
		servers = append(servers, server)
		weights = append(weights, weight)
	}

	return servers, internal.WeightedSlots(weights), nil
}

func closeServers(servers []*Server) {
	for _, s := range servers {
		s.pool.Close()
	}
}

// Resolve returns the server responsible for key.
// For a fixed pool the result depends only on the key.
func (p *ServerPool) Resolve(key string) (*Server, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.slots) == 0 {
		return nil, ErrNotConfigured
	}

	slot := p.selectSlot(p.hash(key), len(p.slots))
	return p.servers[p.slots[slot]], nil
}

// Servers returns the servers in configuration order.
func (p *ServerPool) Servers() []*Server {
	p.mu.RLock()
	defer p.mu.RUnlock()

	servers := make([]*Server, len(p.servers))
	copy(servers, p.servers)
	return servers
}

// SlotCount returns the size of the slot table, the sum of server weights.
func (p *ServerPool) SlotCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.slots)
}

// DisconnectAll closes the idle connections of every server. Servers and slots
// are kept, the next operation reconnects.
func (p *ServerPool) DisconnectAll() {
	for _, s := range p.Servers() {
		if n := s.disconnect(); n > 0 {
			p.logger.Debug("memcache: closed idle connections", "server", s.addr, "count", n)
		}
	}
}

// Close empties the pool and closes every connection.
func (p *ServerPool) Close() {
	p.mu.Lock()
	previous := p.servers
	p.servers = nil
	p.slots = nil
	p.mu.Unlock()

	closeServers(previous)
}
