// clipstash: clipboard history daemon and CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipstash",
		Short: "Clipboard history daemon",
		Long: `clipstash remembers what you copy. The daemon watches the system clipboard,
keeps the most recent entries in memory, and writes every capture to a per-day
journal so history survives restarts. Old days are pruned on a schedule.

Run "clipstash daemon" once per session. The other commands talk to it over
a local socket, or over TLS with --server when it listens on TCP.

Config file search order (first found wins):
  /etc/clipstash/clipstash.toml
  $HOME/.config/clipstash/clipstash.toml
  path supplied via --config

All flags can be set via CLIPSTASH_<FLAG> env vars or config-file keys.
See "clipstash daemon --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newListCmd(),
		newSearchCmd(),
		newPasteCmd(),
		newCopyCmd(),
		newRecopyCmd(),
		newDaysCmd(),
		newShowCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newPruneCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipstash %s\n", Version)
		},
	}
}
