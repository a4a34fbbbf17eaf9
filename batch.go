package memcache

import (
	"bufio"
	"context"
	"sync"

	"github.com/pior/memcache-text/text"
	"golang.org/x/sync/errgroup"
)

// Batch fetches many keys with one get request per server.
//
// Servers that fail (unreachable, open circuit, broken or malformed reply) are
// skipped: their keys are missing from the result like misses, and the failure
// is logged. Keys on healthy servers are always returned.
type Batch struct {
	client *Client
	keys   []string
	seen   map[string]struct{}
}

// NewBatch creates an empty batch.
func (c *Client) NewBatch() *Batch {
	return &Batch{client: c, seen: make(map[string]struct{})}
}

// Add queues keys. Duplicates are ignored.
func (b *Batch) Add(keys ...string) *Batch {
	for _, key := range keys {
		if _, ok := b.seen[key]; ok {
			continue
		}
		b.seen[key] = struct{}{}
		b.keys = append(b.keys, key)
	}
	return b
}

// Len returns the number of distinct keys queued.
func (b *Batch) Len() int {
	return len(b.keys)
}

type serverKeys struct {
	server *Server
	keys   []string
}

// Execute fetches the queued keys and returns the items found, by key.
//
// An invalid key fails the whole batch before anything is sent. Otherwise only
// ErrClientClosed and ErrNotConfigured are returned.
func (b *Batch) Execute(ctx context.Context) (map[string]Item, error) {
	c := b.client

	if err := c.ready(); err != nil {
		c.stats.recordError()
		return nil, err
	}

	for _, key := range b.keys {
		if err := text.ValidateKey(key); err != nil {
			c.stats.recordError()
			return nil, err
		}
	}

	groups, err := b.group()
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	var (
		mu    sync.Mutex
		items = make(map[string]Item, len(b.keys))
	)

	servers := make([]*Server, len(groups))
	for i, g := range groups {
		servers[i] = g.server
	}

	c.fanOut(servers, func(i int, s *Server) {
		keys := groups[i].keys
		values, err := execute(ctx, s, text.NewGetRequest(keys...), func(r *bufio.Reader) ([]text.Value, error) {
			return text.ReadGetResponse(r, keys)
		})
		if err != nil {
			c.stats.recordError()
			c.logger.Warn("memcache: get_multi skipped server", "server", s.addr, "keys", len(keys), "error", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		for _, v := range values {
			items[v.Key] = Item{Key: v.Key, Value: v.Data, Flags: v.Flags, Found: true}
		}
	})

	c.stats.recordGets(len(b.keys), len(items))
	return items, nil
}

// group partitions the keys by server, preserving first-seen order.
func (b *Batch) group() ([]serverKeys, error) {
	var (
		groups []serverKeys
		index  = make(map[*Server]int)
	)

	for _, key := range b.keys {
		server, err := b.client.resolve(key)
		if err != nil {
			return nil, err
		}

		i, ok := index[server]
		if !ok {
			i = len(groups)
			index[server] = i
			groups = append(groups, serverKeys{server: server})
		}
		groups[i].keys = append(groups[i].keys, key)
	}

	return groups, nil
}

// GetMulti fetches keys and returns the items found, by key. Missing keys and
// keys of failing servers are absent from the result.
func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string]Item, error) {
	return c.NewBatch().Add(keys...).Execute(ctx)
}

// fanOut calls fn for every server, at most Config.FetchConcurrency at a time,
// and returns when all calls are done. fn reports its own failures.
func (c *Client) fanOut(servers []*Server, fn func(i int, s *Server)) {
	if len(servers) == 1 || c.config.FetchConcurrency == 1 {
		for i, s := range servers {
			fn(i, s)
		}
		return
	}

	var g errgroup.Group
	if c.config.FetchConcurrency > 0 {
		g.SetLimit(c.config.FetchConcurrency)
	}

	for i, s := range servers {
		g.Go(func() error {
			fn(i, s)
			return nil
		})
	}
	_ = g.Wait()
}
