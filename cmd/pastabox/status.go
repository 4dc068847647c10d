package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/pastabox/internal/grpcservice"
)

func newStatusCmd() *cobra.Command {
	cmd := newClientCmd(&cobra.Command{
		Use:   "status",
		Short: "Show the daemon's state",
		Long: `Displays the running daemon's clipboard backend, polling interval,
auto-capture flag and history size.`,
		Args: cobra.NoArgs,
	}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, v *viper.Viper, _ []string) error {
		st, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if v.GetBool("json") {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		return printStatus(cmd.OutOrStdout(), st, v.GetString("socket"))
	})
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func printStatus(out io.Writer, st map[string]any, socket string) error {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%v\n", st["version"])
	fmt.Fprintf(w, "Socket:\t%s\n", socket)
	fmt.Fprintf(w, "Backend:\t%v\n", st["backend"])
	fmt.Fprintf(w, "Auto-capture:\t%s\n", onOff(st["auto_capture"] == true))
	fmt.Fprintf(w, "Interval:\t%v\n", st["interval"])
	fmt.Fprintf(w, "Snippets:\t%v\n", st["snippets"])
	fmt.Fprintf(w, "Watchers:\t%v\n", st["watchers"])
	if s, ok := st["started_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			fmt.Fprintf(w, "Started:\t%s (%s)\n", t.Local().Format(time.RFC3339), fmtAge(t))
		}
	}
	return w.Flush()
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	if age < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
	return t.Format("2006-01-02 15:04")
}
