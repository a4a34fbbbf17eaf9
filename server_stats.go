package memcache

import (
	"context"
	"strconv"
	"time"

	"github.com/pior/memcache-text/text"
)

// ServerStats is the stats reply of one server. Values are kept as the server
// sent them; the accessors parse them on demand.
type ServerStats struct {
	Addr  string
	Stats map[string]string
}

// Int returns the named stat as a signed integer.
func (s ServerStats) Int(name string) (int64, bool) {
	v, err := strconv.ParseInt(s.Stats[name], 10, 64)
	return v, err == nil
}

// Uint returns the named stat as an unsigned integer.
func (s ServerStats) Uint(name string) (uint64, bool) {
	v, err := strconv.ParseUint(s.Stats[name], 10, 64)
	return v, err == nil
}

// Float returns the named stat as a float, such as rusage_user.
func (s ServerStats) Float(name string) (float64, bool) {
	v, err := strconv.ParseFloat(s.Stats[name], 64)
	return v, err == nil
}

// Seconds returns a stat expressed in seconds, such as uptime, as a duration.
func (s ServerStats) Seconds(name string) (time.Duration, bool) {
	v, ok := s.Float(name)
	if !ok {
		return 0, false
	}
	return time.Duration(v * float64(time.Second)), true
}

// GetStats queries every server with the stats command, optionally for a stats
// group such as "slabs" or "items", and returns the replies in pool order.
// Servers that fail are left out and logged.
func (c *Client) GetStats(ctx context.Context, args ...string) ([]ServerStats, error) {
	servers, err := c.fanOutServers()
	if err != nil {
		return nil, err
	}

	replies := make([]*ServerStats, len(servers))
	c.fanOut(servers, func(i int, s *Server) {
		stats, err := execute(ctx, s, text.NewStatsRequest(args...), text.ReadStatsResponse)
		if err != nil {
			c.stats.recordError()
			c.logger.Warn("memcache: stats skipped server", "server", s.addr, "error", err)
			return
		}
		replies[i] = &ServerStats{Addr: s.addr, Stats: stats}
	})

	result := make([]ServerStats, 0, len(servers))
	for _, r := range replies {
		if r != nil {
			result = append(result, *r)
		}
	}
	return result, nil
}
