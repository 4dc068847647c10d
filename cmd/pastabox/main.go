// pastabox: clipboard history daemon and command-line client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go.klb.dev/pastabox/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pastabox",
		Short: "Clipboard history keeper",
		Long: `pastabox watches the system clipboard and keeps an ordered history of
every distinct text it sees. Snippets can also be added by hand, copied back
to the clipboard, or removed.

Run "pastabox daemon" once per session. The other commands talk to it over a
local socket (or named pipe on Windows).

Config file search order (first found wins):
  /etc/pastabox/pastabox.toml
  $HOME/.config/pastabox/pastabox.toml
  path supplied via --config

All flags can be set via PASTABOX_<FLAG> env vars or config-file keys.
See "pastabox daemon --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newAddCmd(),
		newListCmd(),
		newGetCmd(),
		newCopyCmd(),
		newRemoveCmd(),
		newClearCmd(),
		newToggleCmd(),
		newDraftCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pastabox %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
