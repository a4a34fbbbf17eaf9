package memcache_test

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	memcache "github.com/pior/memcache-text"
)

func Example() {
	client, err := memcache.New("localhost:11211", "localhost:11212=2")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	_, err = client.Set(ctx, memcache.Item{Key: "greeting", Value: []byte("hello"), Expiration: time.Hour})
	if err != nil {
		log.Printf("set failed: %v", err)
		return
	}

	item, err := client.Get(ctx, "greeting")
	if err != nil {
		log.Printf("get failed: %v", err)
		return
	}
	if item.Found {
		fmt.Printf("greeting = %s\n", item.Value)
	}
}

func ExampleClient_GetMulti() {
	client, err := memcache.New("localhost:11211", "localhost:11212")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	// Keys on an unreachable server are reported like misses.
	items, err := client.GetMulti(context.Background(), []string{"foo", "baz", "missing"})
	if err != nil {
		log.Fatal(err)
	}

	for key, item := range items {
		fmt.Printf("%s = %s\n", key, item.Value)
	}
}

func ExampleClient_Incr() {
	client, err := memcache.New("localhost:11211")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	value, found, err := client.Incr(ctx, "hits", 1)
	if err != nil {
		log.Fatal(err)
	}
	if !found {
		// incr never creates the key
		_, _ = client.Add(ctx, memcache.Item{Key: "hits", Value: []byte("1")})
		value = 1
	}
	fmt.Printf("hits: %d\n", value)
}

func ExampleNewClient() {
	client, err := memcache.NewClient(memcache.Config{
		MaxSize:           4,
		Timeout:           500 * time.Millisecond,
		FetchConcurrency:  8,
		Hash:              memcache.CRC32Hash,
		NewCircuitBreaker: memcache.NewCircuitBreakerConfig(3, time.Minute, 10*time.Second),
		Logger:            slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	specs, err := memcache.ParseServerSpecs("cache-1:11211=3, cache-2:11211")
	if err != nil {
		log.Fatal(err)
	}
	if err := client.SetServers(specs...); err != nil {
		log.Fatal(err)
	}
}

func ExampleClient_GetStats() {
	client, err := memcache.New("localhost:11211")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	stats, err := client.GetStats(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for _, s := range stats {
		uptime, _ := s.Seconds("uptime")
		items, _ := s.Uint("curr_items")
		fmt.Printf("%s: version=%s uptime=%s items=%d\n", s.Addr, s.Stats["version"], uptime, items)
	}
}

func ExampleClient_AllPoolStats() {
	client, err := memcache.New("localhost:11211")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	_, _ = client.Set(ctx, memcache.Item{Key: "user:123", Value: []byte("John")})
	_, _ = client.Get(ctx, "user:123")
	_, _ = client.Get(ctx, "user:456")

	stats := client.Stats()
	fmt.Printf("gets=%d hits=%d errors=%d\n", stats.Gets, stats.GetHits, stats.Errors)

	for _, s := range client.AllPoolStats() {
		fmt.Printf("%s: total=%d idle=%d active=%d breaker=%s\n",
			s.Addr, s.PoolStats.TotalConns, s.PoolStats.IdleConns, s.PoolStats.ActiveConns, s.CircuitBreakerState)
	}
}

func ExampleClient_SetValue() {
	client, err := memcache.New("localhost:11211")
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	type session struct {
		UserID int    `json:"user_id"`
		Token  string `json:"token"`
	}

	if err := client.SetValue(ctx, "session:1", session{UserID: 1, Token: "abc"}, 30*time.Minute); err != nil {
		log.Fatal(err)
	}

	var s session
	found, err := client.GetValue(ctx, "session:1", &s)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(found, s.UserID)
}
