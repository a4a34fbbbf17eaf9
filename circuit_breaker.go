package memcache

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerPolicy configures the circuit breaker of each server.
//
// Only transport failures count against a breaker: misses, NOT_STORED and
// error replies from the server are successes. While a breaker is open,
// operations on its server fail with gobreaker.ErrOpenState and GetMulti
// treats its keys as misses.
type CircuitBreakerPolicy struct {
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval resets the counts periodically while closed. Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// The breaker opens once MinRequests were seen and at least FailureRatio
	// of them failed. Zero values mean 3 and 0.6.
	MinRequests  uint32
	FailureRatio float64

	// Logger receives state changes. If nil, nothing is logged.
	Logger *slog.Logger
}

// New creates the breaker of the server at serverAddr.
// It has the signature of Config.NewCircuitBreaker.
func (p CircuitBreakerPolicy) New(serverAddr string) *gobreaker.CircuitBreaker[bool] {
	minRequests := p.MinRequests
	if minRequests == 0 {
		minRequests = 3
	}
	failureRatio := p.FailureRatio
	if failureRatio == 0 {
		failureRatio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        serverAddr,
		MaxRequests: p.MaxRequests,
		Interval:    p.Interval,
		Timeout:     p.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
	}
	if p.Logger != nil {
		logger := p.Logger
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("memcache: circuit breaker state changed", "server", name, "from", from.String(), "to", to.String())
		}
	}
	return gobreaker.NewCircuitBreaker[bool](settings)
}

// NewCircuitBreakerConfig returns a Config.NewCircuitBreaker function with the
// default trip condition: 3 requests seen and 60% of them failed.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[bool] {
	return CircuitBreakerPolicy{
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
	}.New
}
