package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	memcache "github.com/pior/memcache-text"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Get the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !item.Found {
				fmt.Println("not found")
				return nil
			}
			fmt.Printf("%s (flags=%d)\n", item.Value, item.Flags)
			return nil
		},
	}

	mgetCmd = &cobra.Command{
		Use:   "mget [key...]",
		Short: "Get many keys with one request per server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			items, err := client.GetMulti(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, key := range args {
				if item, ok := items[key]; ok {
					fmt.Printf("%s: %s\n", key, item.Value)
				} else {
					fmt.Printf("%s: <not found>\n", key)
				}
			}
			fmt.Printf("retrieved %d out of %d keys (took %v)\n", len(items), len(args), time.Since(start))
			return nil
		},
	}

	setCmd     = newStoreCmd("set", "Store a value", func() storeFunc { return client.Set })
	addCmd     = newStoreCmd("add", "Store a value if the key does not exist", func() storeFunc { return client.Add })
	replaceCmd = newStoreCmd("replace", "Store a value if the key exists", func() storeFunc { return client.Replace })

	deleteCmd = &cobra.Command{
		Use:   "delete [key]",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := client.Delete(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			if deleted {
				fmt.Println("deleted")
			} else {
				fmt.Println("not found")
			}
			return nil
		},
	}

	incrCmd = newArithCmd("incr", "Increment a numeric value", func() arithFunc { return client.Incr })
	decrCmd = newArithCmd("decr", "Decrement a numeric value, stopping at zero", func() arithFunc { return client.Decr })

	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Invalidate every item on every server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.FlushAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("flushed")
			return nil
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats [group]",
		Short: "Show the stats of every server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := client.GetStats(cmd.Context(), args...)
			if err != nil {
				return err
			}
			for _, s := range stats {
				fmt.Printf("%s:\n", s.Addr)
				names := make([]string, 0, len(s.Stats))
				for name := range s.Stats {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Printf("  %-24s %s\n", name, s.Stats[name])
				}
			}
			if len(stats) < len(client.Servers()) {
				fmt.Printf("%d server(s) did not reply\n", len(client.Servers())-len(stats))
			}
			return nil
		},
	}

	poolCmd = &cobra.Command{
		Use:   "pool",
		Short: "Show the server pool as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type server struct {
				Addr   string `json:"addr"`
				Weight int    `json:"weight"`
			}
			var servers []server
			for _, s := range client.Servers() {
				servers = append(servers, server{Addr: s.Addr(), Weight: s.Weight()})
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(servers)
		},
	}

	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Check every server with a version request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("ping successful (took %v)\n", time.Since(start))
			return nil
		},
	}
)

type storeFunc func(ctx context.Context, item memcache.Item) (bool, error)

type arithFunc func(ctx context.Context, key string, delta uint64) (uint64, bool, error)

func newStoreCmd(name, short string, fn func() storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " [key] [value]",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			flags, _ := cmd.Flags().GetUint32("flags")

			stored, err := fn()(cmd.Context(), memcache.Item{
				Key:        args[0],
				Value:      []byte(args[1]),
				Flags:      flags,
				Expiration: ttl,
			})
			if err != nil {
				return err
			}
			if stored {
				fmt.Println("stored")
			} else {
				fmt.Println("not stored")
			}
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 0, "Expiration of the item, 0 for none")
	cmd.Flags().Uint32("flags", 0, "Opaque flags stored with the item")
	return cmd
}

func newArithCmd(name, short string, fn func() arithFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [key] [delta]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta := uint64(1)
			if len(args) == 2 {
				var err error
				delta, err = strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("delta must be a positive number: %w", err)
				}
			}

			value, found, err := fn()(cmd.Context(), args[0], delta)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("not found")
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
}
