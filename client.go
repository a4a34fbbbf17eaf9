package memcache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/pior/memcache-text/text"
	"github.com/sony/gobreaker/v2"
)

// NoExpiration stores an item until it is evicted or deleted.
const NoExpiration = 0

// Item is a value stored under a key.
type Item struct {
	Key   string
	Value []byte

	// Flags is an opaque word stored with the value and returned unchanged.
	Flags uint32

	// Expiration is relative to now. Zero means no expiration. A negative
	// expiration stores an item that is already expired.
	Expiration time.Duration

	// Found reports whether Get found the key. It is ignored when storing.
	Found bool
}

// Querier is the set of single-key and batch operations of Client.
type Querier interface {
	Get(ctx context.Context, key string) (Item, error)
	GetMulti(ctx context.Context, keys []string) (map[string]Item, error)
	Set(ctx context.Context, item Item) (bool, error)
	Add(ctx context.Context, item Item) (bool, error)
	Replace(ctx context.Context, item Item) (bool, error)
	Delete(ctx context.Context, key string, delay time.Duration) (bool, error)
	Incr(ctx context.Context, key string, delta uint64) (uint64, bool, error)
	Decr(ctx context.Context, key string, delta uint64) (uint64, bool, error)
}

// Config holds the configuration of a Client. The zero value is usable.
type Config struct {
	// MaxSize is the maximum number of connections per server.
	// Zero means 1: requests to a server are serialized on a single connection.
	MaxSize int32

	// MaxWeight caps server weights. Zero means DefaultMaxWeight.
	MaxWeight int

	// Timeout bounds each request/reply exchange. Zero means no limit beyond
	// the context deadline.
	Timeout time.Duration

	// MaxConnLifetime and MaxConnIdleTime are enforced on idle connections by Ping.
	// Zero means no limit.
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// FetchConcurrency bounds the number of servers queried in parallel by
	// GetMulti, GetStats, FlushAll and Ping. Zero means all servers at once,
	// 1 means sequentially.
	FetchConcurrency int

	// Dialer is used to open connections. If nil, a net.Dialer with a 5s timeout is used.
	Dialer *net.Dialer

	// Pool creates the connection pool of each server. If nil, NewPuddlePool is used.
	Pool PoolFactory

	// Hash maps keys to 64-bit hashes. If nil, DefaultHash (xxh3) is used.
	// Use CRC32Hash to share placement with libmemcache-based clients.
	Hash HashFunc

	// SelectSlot reduces a hash to a slot of the weighted slot table.
	// If nil, ModuloSlot is used.
	SelectSlot SlotSelector

	// NewCircuitBreaker creates a circuit breaker for a server.
	// If nil, no circuit breaker is used. See NewCircuitBreakerConfig.
	NewCircuitBreaker func(serverAddr string) *gobreaker.CircuitBreaker[bool]

	// Logger receives pool changes and failures absorbed by fan-out operations.
	// If nil, nothing is logged.
	Logger *slog.Logger

	// for testing purposes only
	constructor func(ctx context.Context, addr string) (*Connection, error)
}

func (c Config) withDefaults() Config {
	if c.MaxSize == 0 {
		c.MaxSize = 1
	}
	if c.MaxWeight == 0 {
		c.MaxWeight = DefaultMaxWeight
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{Timeout: 5 * time.Second}
	}
	if c.Pool == nil {
		c.Pool = NewPuddlePool
	}
	if c.Hash == nil {
		c.Hash = DefaultHash
	}
	if c.SelectSlot == nil {
		c.SelectSlot = ModuloSlot
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Client is a memcached client distributing keys over a weighted server pool.
// A new Client has no servers: call SetServers before any data operation.
// A Client is safe for concurrent use.
type Client struct {
	config  Config
	servers *ServerPool
	logger  *slog.Logger
	closed  atomic.Bool

	stats *clientStatsCollector
}

var _ Querier = (*Client)(nil)

// NewClient creates an unconfigured client.
func NewClient(config Config) (*Client, error) {
	if config.MaxSize < 0 {
		return nil, fmt.Errorf("memcache: invalid MaxSize %d", config.MaxSize)
	}
	if config.MaxWeight < 0 {
		return nil, fmt.Errorf("memcache: invalid MaxWeight %d", config.MaxWeight)
	}
	config = config.withDefaults()

	c := &Client{
		config: config,
		logger: config.Logger,
		stats:  newClientStatsCollector(),
	}
	c.servers = &ServerPool{
		hash:       config.Hash,
		selectSlot: config.SelectSlot,
		maxWeight:  config.MaxWeight,
		newServer:  c.newServer,
		logger:     config.Logger,
	}
	return c, nil
}

// New creates a client with default configuration for the given "host:port" or
// "host:port=weight" servers.
func New(servers ...string) (*Client, error) {
	specs := make([]ServerSpec, 0, len(servers))
	for _, s := range servers {
		spec, err := ParseServerSpec(s)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	c, err := NewClient(Config{})
	if err != nil {
		return nil, err
	}
	if err := c.SetServers(specs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) newServer(addr string, weight int) (*Server, error) {
	constructor := func(ctx context.Context) (*Connection, error) {
		if c.config.constructor != nil {
			return c.config.constructor(ctx, addr)
		}
		return Dial(ctx, c.config.Dialer, addr, c.config.Timeout)
	}

	pool, err := c.config.Pool(constructor, c.config.MaxSize)
	if err != nil {
		return nil, err
	}

	server := &Server{addr: addr, weight: weight, pool: pool}
	if c.config.NewCircuitBreaker != nil {
		server.breaker = c.config.NewCircuitBreaker(addr)
	}
	return server, nil
}

// SetServers replaces the server pool.
//
// Weights are clamped to Config.MaxWeight. On error the pool is left empty and
// data operations return ErrNotConfigured until a successful call.
// Calling SetServers without specs empties the pool.
func (c *Client) SetServers(specs ...ServerSpec) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.servers.Rebuild(specs)
}

// Servers returns the pool's servers in configuration order.
func (c *Client) Servers() []*Server {
	return c.servers.Servers()
}

// Close closes every connection. Subsequent operations return ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.servers.Close()
	return nil
}

// DisconnectAll closes all idle connections but keeps the configuration.
// The next operation on a server reconnects to it.
func (c *Client) DisconnectAll() {
	c.servers.DisconnectAll()
}

func (c *Client) resolve(key string) (*Server, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.servers.Resolve(key)
}

// ready reports why no operation can run: a closed client or an empty server list.
func (c *Client) ready() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.servers.SlotCount() == 0 {
		return ErrNotConfigured
	}
	return nil
}

// Get fetches a single key. A miss is not an error: Item.Found is false.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	server, err := c.resolve(key)
	if err != nil {
		c.stats.recordError()
		return Item{}, err
	}

	values, err := execute(ctx, server, text.NewGetRequest(key), func(r *bufio.Reader) ([]text.Value, error) {
		return text.ReadGetResponse(r, []string{key})
	})
	if err != nil {
		c.stats.record(opGet, err)
		return Item{}, err
	}

	if len(values) == 0 {
		c.stats.recordGets(1, 0)
		return Item{Key: key}, nil
	}

	c.stats.recordGets(1, 1)
	return Item{
		Key:   key,
		Value: values[0].Data,
		Flags: values[0].Flags,
		Found: true,
	}, nil
}

// Set stores item unconditionally.
func (c *Client) Set(ctx context.Context, item Item) (bool, error) {
	return c.store(ctx, text.CmdSet, opSet, item)
}

// Add stores item only if the key does not exist. It returns false otherwise.
func (c *Client) Add(ctx context.Context, item Item) (bool, error) {
	return c.store(ctx, text.CmdAdd, opAdd, item)
}

// Replace stores item only if the key exists. It returns false otherwise.
func (c *Client) Replace(ctx context.Context, item Item) (bool, error) {
	return c.store(ctx, text.CmdReplace, opReplace, item)
}

func (c *Client) store(ctx context.Context, cmd text.Command, op clientOp, item Item) (bool, error) {
	server, err := c.resolve(item.Key)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	req := text.NewStoreRequest(cmd, item.Key, item.Value, item.Flags, expirationSeconds(item.Expiration))
	stored, err := execute(ctx, server, req, text.ReadStoreResponse)
	c.stats.record(op, err)
	return stored, err
}

// Delete removes key. It returns false if the key did not exist.
// A positive delay asks the server to hold the key for that long, on servers
// supporting it. A zero or negative delay deletes immediately.
func (c *Client) Delete(ctx context.Context, key string, delay time.Duration) (bool, error) {
	server, err := c.resolve(key)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	deleted, err := execute(ctx, server, text.NewDeleteRequest(key, max(expirationSeconds(delay), 0)), text.ReadDeleteResponse)
	c.stats.record(opDelete, err)
	return deleted, err
}

// Incr adds delta to the decimal value stored at key and returns the result.
// found is false when the key does not exist or its value is not a number;
// the key is not created. The server wraps around on overflow.
func (c *Client) Incr(ctx context.Context, key string, delta uint64) (value uint64, found bool, err error) {
	return c.arith(ctx, text.CmdIncr, opIncr, key, delta)
}

// Decr subtracts delta from the decimal value stored at key and returns the result.
// The result never goes below zero. found is false as for Incr.
func (c *Client) Decr(ctx context.Context, key string, delta uint64) (value uint64, found bool, err error) {
	return c.arith(ctx, text.CmdDecr, opDecr, key, delta)
}

type arithResult struct {
	value uint64
	found bool
}

func (c *Client) arith(ctx context.Context, cmd text.Command, op clientOp, key string, delta uint64) (uint64, bool, error) {
	server, err := c.resolve(key)
	if err != nil {
		c.stats.recordError()
		return 0, false, err
	}

	res, err := execute(ctx, server, text.NewArithRequest(cmd, key, delta), func(r *bufio.Reader) (arithResult, error) {
		value, found, err := text.ReadArithResponse(r)
		return arithResult{value: value, found: found}, err
	})
	c.stats.record(op, err)
	if err != nil {
		return 0, false, err
	}
	return res.value, res.found, nil
}

// FlushAll invalidates every item on every server.
// All servers are attempted; the returned error joins the failures.
func (c *Client) FlushAll(ctx context.Context) error {
	servers, err := c.fanOutServers()
	if err != nil {
		c.stats.recordError()
		return err
	}

	errs := make([]error, len(servers))
	c.fanOut(servers, func(i int, s *Server) {
		_, err := execute(ctx, s, text.NewFlushAllRequest(0), func(r *bufio.Reader) (struct{}, error) {
			return struct{}{}, text.ReadOKResponse(r)
		})
		if err != nil {
			errs[i] = fmt.Errorf("%s: %w", s.addr, err)
		}
	})

	err = errors.Join(errs...)
	c.stats.record(opFlush, err)
	return err
}

// Ping checks every server with a version exchange, after closing idle
// connections past MaxConnLifetime or MaxConnIdleTime.
// The returned error joins the failures.
func (c *Client) Ping(ctx context.Context) error {
	servers, err := c.fanOutServers()
	if err != nil {
		return err
	}

	errs := make([]error, len(servers))
	c.fanOut(servers, func(i int, s *Server) {
		s.checkIdle(c.config.MaxConnLifetime, c.config.MaxConnIdleTime)

		if _, err := execute(ctx, s, text.NewVersionRequest(), text.ReadVersionResponse); err != nil {
			errs[i] = fmt.Errorf("%s: %w", s.addr, err)
		}
	})
	return errors.Join(errs...)
}

func (c *Client) fanOutServers() ([]*Server, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	servers := c.servers.Servers()
	if len(servers) == 0 {
		return nil, ErrNotConfigured
	}
	return servers, nil
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// AllPoolStats returns the connection pool and breaker state of every server.
func (c *Client) AllPoolStats() []ServerPoolStats {
	servers := c.servers.Servers()
	stats := make([]ServerPoolStats, len(servers))
	for i, s := range servers {
		stats[i] = s.Stats()
	}
	return stats
}

// expirationSeconds converts a relative expiration to the protocol value.
// Memcached reads values above 30 days as absolute unix timestamps, and
// negative values as already expired.
func expirationSeconds(d time.Duration) int64 {
	if d == 0 {
		return 0
	}
	if d < 0 {
		return -1
	}

	seconds := int64(d / time.Second)
	if seconds == 0 {
		seconds = 1
	}
	if seconds > maxRelativeExpiration {
		return time.Now().Add(d).Unix()
	}
	return seconds
}

const maxRelativeExpiration = 60 * 60 * 24 * 30
