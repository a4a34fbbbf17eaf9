package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	memcache "github.com/pior/memcache-text"
	"github.com/pior/memcache-text/prommetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type operation string

const (
	cacheHit     operation = "cache-hit"
	dynamicValue operation = "dynamic-value"
	cacheMiss    operation = "cache-miss"
	increment    operation = "increment"
	deleteOp     operation = "delete"
	getMulti     operation = "get-multi"
	allOps       operation = "all"
)

var benchOperations = []operation{cacheHit, dynamicValue, cacheMiss, increment, deleteOp, getMulti}

type benchResult struct {
	operation   operation
	duration    time.Duration
	totalOps    int64
	failures    int64
	avgLatency  time.Duration
	opsPerSec   float64
	correctness bool
	message     string
}

// benchRecorder accumulates the outcome of the operations of all workers.
type benchRecorder struct {
	totalOps     atomic.Int64
	failures     atomic.Int64
	totalLatency atomic.Int64

	mu          sync.Mutex
	correctness bool
	message     string
}

func (r *benchRecorder) observe(start time.Time, err error) {
	r.totalOps.Add(1)
	r.totalLatency.Add(int64(time.Since(start)))
	if err != nil {
		r.failures.Add(1)
	}
}

func (r *benchRecorder) incorrect(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.correctness = false
	r.message = message
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a load test against the server pool",
	Long: `Runs one or all of the operations cache-hit, dynamic-value, cache-miss,
increment, delete and get-multi for a fixed duration with concurrent workers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		op, _ := cmd.Flags().GetString("operation")
		duration, _ := cmd.Flags().GetDuration("duration")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		if metricsAddr != "" {
			serveMetrics(metricsAddr)
		}

		ctx := cmd.Context()
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("servers not ready: %w", err)
		}

		ops := []operation{operation(op)}
		if operation(op) == allOps {
			ops = benchOperations
		}

		for _, op := range ops {
			fmt.Printf("--- %s: %d workers for %v ---\n", op, concurrency, duration)
			result, err := runBenchmark(ctx, op, duration, concurrency)
			if err != nil {
				return err
			}
			printResult(result)
		}

		stats := client.Stats()
		fmt.Printf("client: gets=%d hits=%d sets=%d errors=%d\n", stats.Gets, stats.GetHits, stats.Sets, stats.Errors)
		return nil
	},
}

func init() {
	benchCmd.Flags().String("operation", string(allOps), "Operation: cache-hit, dynamic-value, cache-miss, increment, delete, get-multi or all")
	benchCmd.Flags().Duration("duration", 5*time.Second, "Duration of each benchmark")
	benchCmd.Flags().Int("concurrency", 4, "Number of concurrent workers")
	benchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, such as :9150")
}

func serveMetrics(addr string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prommetrics.NewCollector(client, "bench"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()
}

func runBenchmark(ctx context.Context, op operation, duration time.Duration, concurrency int) (*benchResult, error) {
	var worker func(ctx context.Context, id int, r *benchRecorder) error

	switch op {
	case cacheHit:
		worker = benchCacheHit
	case dynamicValue:
		worker = benchDynamicValue
	case cacheMiss:
		worker = benchCacheMiss
	case increment:
		worker = benchIncrement
	case deleteOp:
		worker = benchDelete
	case getMulti:
		worker = benchGetMulti
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	if err := setupBenchmark(ctx, op); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	r := &benchRecorder{correctness: true}
	start := time.Now()

	var wg sync.WaitGroup
	for i := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if err := worker(ctx, i, r); err != nil {
					r.incorrect(err.Error())
				}
			}
		}()
	}
	wg.Wait()

	result := &benchResult{
		operation:   op,
		duration:    time.Since(start),
		totalOps:    r.totalOps.Load(),
		failures:    r.failures.Load(),
		correctness: r.correctness,
		message:     r.message,
	}
	if result.totalOps > 0 {
		result.avgLatency = time.Duration(r.totalLatency.Load() / result.totalOps)
		result.opsPerSec = float64(result.totalOps) / result.duration.Seconds()
	}
	return result, nil
}

const (
	hitKey     = "bench:cache-hit"
	counterKey = "bench:counter"
	multiKeys  = 20
)

var hitValue = []byte("cache-hit-value")

func setupBenchmark(ctx context.Context, op operation) error {
	var err error
	switch op {
	case cacheHit:
		_, err = client.Set(ctx, memcache.Item{Key: hitKey, Value: hitValue, Expiration: time.Hour})
	case increment:
		_, err = client.Set(ctx, memcache.Item{Key: counterKey, Value: []byte("0"), Expiration: time.Hour})
	case getMulti:
		for i := range multiKeys {
			_, err = client.Set(ctx, memcache.Item{Key: multiKey(i), Value: []byte(strconv.Itoa(i)), Expiration: time.Hour})
			if err != nil {
				break
			}
		}
	}
	if err != nil {
		return fmt.Errorf("setup of %s failed: %w", op, err)
	}
	return nil
}

func multiKey(i int) string {
	return "bench:multi:" + strconv.Itoa(i)
}

// benchCacheHit: 100 gets of the same key
func benchCacheHit(ctx context.Context, _ int, r *benchRecorder) error {
	for range 100 {
		start := time.Now()
		item, err := client.Get(ctx, hitKey)
		if isCanceled(ctx, err) {
			return nil
		}
		r.observe(start, err)
		if err == nil && string(item.Value) != string(hitValue) {
			return errors.New("value mismatch")
		}
	}
	return nil
}

// benchDynamicValue: 1 set then 1 get of a new key
func benchDynamicValue(ctx context.Context, id int, r *benchRecorder) error {
	key := fmt.Sprintf("bench:dynamic:%d:%d", id, time.Now().UnixNano())
	value := []byte(key)

	start := time.Now()
	_, err := client.Set(ctx, memcache.Item{Key: key, Value: value, Expiration: time.Minute})
	if isCanceled(ctx, err) {
		return nil
	}
	r.observe(start, err)
	if err != nil {
		return nil
	}

	start = time.Now()
	item, err := client.Get(ctx, key)
	if isCanceled(ctx, err) {
		return nil
	}
	r.observe(start, err)
	if err == nil && string(item.Value) != string(value) {
		return errors.New("value mismatch")
	}
	return nil
}

// benchCacheMiss: 1 get of a key that does not exist
func benchCacheMiss(ctx context.Context, id int, r *benchRecorder) error {
	key := fmt.Sprintf("bench:missing:%d:%d", id, time.Now().UnixNano())

	start := time.Now()
	item, err := client.Get(ctx, key)
	if isCanceled(ctx, err) {
		return nil
	}
	r.observe(start, err)
	if err == nil && item.Found {
		return errors.New("expected a miss")
	}
	return nil
}

// benchIncrement: 100 incr then 1 get
func benchIncrement(ctx context.Context, _ int, r *benchRecorder) error {
	for range 100 {
		start := time.Now()
		_, found, err := client.Incr(ctx, counterKey, 1)
		if isCanceled(ctx, err) {
			return nil
		}
		r.observe(start, err)
		if err == nil && !found {
			return errors.New("counter disappeared")
		}
	}

	start := time.Now()
	item, err := client.Get(ctx, counterKey)
	if isCanceled(ctx, err) {
		return nil
	}
	r.observe(start, err)
	if err == nil {
		if _, err := strconv.ParseUint(string(item.Value), 10, 64); err != nil {
			return errors.New("counter value is not a number")
		}
	}
	return nil
}

// benchDelete: 1 set then 1 delete
func benchDelete(ctx context.Context, id int, r *benchRecorder) error {
	key := fmt.Sprintf("bench:delete:%d:%d", id, time.Now().UnixNano())

	start := time.Now()
	_, err := client.Set(ctx, memcache.Item{Key: key, Value: []byte("x")})
	if isCanceled(ctx, err) {
		return nil
	}
	r.observe(start, err)
	if err != nil {
		return nil
	}

	start = time.Now()
	deleted, err := client.Delete(ctx, key, 0)
	if isCanceled(ctx, err) {
		return nil
	}
	r.observe(start, err)
	if err == nil && !deleted {
		return errors.New("delete found no key")
	}
	return nil
}

// benchGetMulti: 1 get_multi of the preloaded keys plus one missing key
func benchGetMulti(ctx context.Context, _ int, r *benchRecorder) error {
	keys := make([]string, 0, multiKeys+1)
	for i := range multiKeys {
		keys = append(keys, multiKey(i))
	}
	keys = append(keys, "bench:multi:missing")

	start := time.Now()
	items, err := client.GetMulti(ctx, keys)
	if isCanceled(ctx, err) {
		return nil
	}
	r.observe(start, err)
	if err == nil && len(items) != multiKeys {
		return fmt.Errorf("get_multi returned %d items, expected %d", len(items), multiKeys)
	}
	return nil
}

// isCanceled reports whether err is due to the end of the benchmark.
func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && err != nil
}

func printResult(result *benchResult) {
	fmt.Printf("Duration: %v\n", result.duration)
	fmt.Printf("Total Operations: %d\n", result.totalOps)
	fmt.Printf("Failures: %d\n", result.failures)
	if result.totalOps > 0 {
		fmt.Printf("Success Rate: %.2f%%\n", float64(result.totalOps-result.failures)/float64(result.totalOps)*100)
		fmt.Printf("Ops/sec: %.2f\n", result.opsPerSec)
		fmt.Printf("Avg Latency: %v\n", result.avgLatency)
	}
	fmt.Printf("Correctness: %t\n", result.correctness)
	if result.message != "" {
		fmt.Printf("Error: %s\n", result.message)
	}
	fmt.Println()
}
