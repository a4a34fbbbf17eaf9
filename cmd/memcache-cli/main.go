// Command memcache-cli runs memcache client operations against a server pool.
//
// Servers are read from --servers or the MEMCACHE_SERVERS environment variable,
// which may be set in a .env or .env.local file:
//
//	MEMCACHE_SERVERS="cache-1:11211=2, cache-2:11211" memcache-cli get user:1
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "memcache-cli",
		Short: "memcached text protocol client",
		Long: fmt.Sprintf(`memcache-cli (v%s)

Runs memcached commands against a weighted pool of servers.
Keys are distributed over the servers the same way the Go client does.`, Version),
		SilenceUsage:       true,
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}

	versionCmd = &cobra.Command{
		Use:                "version",
		Short:              "Print the version number of memcache-cli",
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memcache-cli v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	setupClientFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(getCmd, mgetCmd, setCmd, addCmd, replaceCmd, deleteCmd)
	rootCmd.AddCommand(incrCmd, decrCmd, flushCmd, statsCmd, poolCmd, pingCmd)
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
