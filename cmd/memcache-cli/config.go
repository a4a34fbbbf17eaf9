package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	memcache "github.com/pior/memcache-text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// client is created by setupClient before any subcommand runs.
var client *memcache.Client

func setupClientFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("servers", "localhost:11211", "Comma-separated servers as host:port or host:port=weight")
	flags.Duration("timeout", time.Second, "Timeout of each request")
	flags.Int("max-weight", memcache.DefaultMaxWeight, "Maximum server weight")
	flags.Int32("max-conns", 1, "Maximum connections per server")
	flags.Int("fetch-concurrency", 0, "Servers queried in parallel by mget and stats, 0 for all")
	flags.String("hash", "xxh3", "Key hash: xxh3 or crc32")
	flags.String("slot", "modulo", "Slot selection: modulo or jump")
	flags.Bool("circuit-breaker", false, "Enable a circuit breaker per server")
	flags.Bool("verbose", false, "Log pool changes and skipped servers")
}

// initConfig loads .env files and binds MEMCACHE_* environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("memcache")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupClient(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	config, err := clientConfig()
	if err != nil {
		return err
	}

	specs, err := memcache.ParseServerSpecs(viper.GetString("servers"))
	if err != nil {
		return err
	}

	client, err = memcache.NewClient(config)
	if err != nil {
		return err
	}
	return client.SetServers(specs...)
}

func closeClient(*cobra.Command, []string) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

func clientConfig() (memcache.Config, error) {
	config := memcache.Config{
		Timeout:          viper.GetDuration("timeout"),
		MaxWeight:        viper.GetInt("max-weight"),
		MaxSize:          viper.GetInt32("max-conns"),
		FetchConcurrency: viper.GetInt("fetch-concurrency"),
	}

	switch h := viper.GetString("hash"); h {
	case "xxh3":
		config.Hash = memcache.DefaultHash
	case "crc32":
		config.Hash = memcache.CRC32Hash
	default:
		return config, fmt.Errorf("invalid hash %q", h)
	}

	switch s := viper.GetString("slot"); s {
	case "modulo":
		config.SelectSlot = memcache.ModuloSlot
	case "jump":
		config.SelectSlot = memcache.JumpSlot
	default:
		return config, fmt.Errorf("invalid slot selection %q", s)
	}

	if viper.GetBool("circuit-breaker") {
		config.NewCircuitBreaker = memcache.NewCircuitBreakerConfig(1, time.Minute, 10*time.Second)
	}

	if viper.GetBool("verbose") {
		config.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	return config, nil
}
