package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/pastabox/internal/grpcservice"
	"go.klb.dev/pastabox/internal/history"
	"go.klb.dev/pastabox/internal/hub"
	"go.klb.dev/pastabox/internal/ipc"
	"go.klb.dev/pastabox/internal/logging"
)

// clientFunc is the body of a command that talks to the daemon.
type clientFunc func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, v *viper.Viper, args []string) error

// defaultTimeout bounds one request/response command.
const defaultTimeout = 5 * time.Second

// newClientCmd builds a command that dials the daemon, runs fn under
// --timeout (default timeout), and closes the connection.
func newClientCmd(cmd *cobra.Command, timeout time.Duration, fn clientFunc) *cobra.Command {
	v := viper.New()
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) }
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, err := dialDaemon(v.GetString("socket"))
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if d := v.GetDuration("timeout"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return fn(ctx, cmd, c, v, args)
	}
	addSocketFlag(cmd)
	addConfigFlag(cmd)
	cmd.Flags().Duration("timeout", timeout, "give up on the daemon after this long (0 = never)")
	return cmd
}

func dialDaemon(path string) (*grpcservice.Client, error) {
	if !ipc.IsRunning(path) {
		return nil, fmt.Errorf("no pastabox daemon at %s (start one with \"pastabox daemon\")", path)
	}
	return grpcservice.Dial(path)
}

func parseHandleArg(s string) (history.Handle, error) {
	h, err := history.ParseHandle(s)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q", s)
	}
	return h, nil
}

// oneLine renders text for a table cell.
func oneLine(text string) string {
	return logging.Preview(strings.NewReplacer("\r\n", "⏎", "\n", "⏎", "\t", " ").Replace(text))
}

func newAddCmd() *cobra.Command {
	return newClientCmd(&cobra.Command{
		Use:   "add [TEXT...]",
		Short: "Add a snippet to the history",
		Long: `Adds TEXT (the arguments joined by spaces) to the history. With no
arguments the snippet is read from stdin. Prints the new snippet's handle.

Adding by hand does not affect clipboard de-duplication: if the same text is
on the clipboard it may still be captured on the next poll.`,
	}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, _ *viper.Viper, args []string) error {
		text := strings.Join(args, " ")
		if len(args) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = string(data)
		}
		h, err := c.Add(ctx, text)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	})
}

type listedEntry struct {
	Handle string `json:"handle"`
	Text   string `json:"text"`
}

func newListCmd() *cobra.Command {
	cmd := newClientCmd(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the history, oldest first",
		Args:    cobra.NoArgs,
	}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, v *viper.Viper, _ []string) error {
		entries, err := c.List(ctx)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		out := cmd.OutOrStdout()

		if v.GetBool("json") {
			rows := make([]listedEntry, len(entries))
			for i, e := range entries {
				rows[i] = listedEntry{Handle: e.Handle.String(), Text: e.Text}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "History is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(tw, "HANDLE\tTEXT\n")
		for _, e := range entries {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", e.Handle, oneLine(e.Text))
		}
		return tw.Flush()
	})
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newGetCmd() *cobra.Command {
	return newClientCmd(&cobra.Command{
		Use:   "get HANDLE",
		Short: "Print a snippet to stdout",
		Args:  cobra.ExactArgs(1),
	}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, _ *viper.Viper, args []string) error {
		h, err := parseHandleArg(args[0])
		if err != nil {
			return err
		}
		text, err := c.Get(ctx, h)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), text)
		return err
	})
}

func newCopyCmd() *cobra.Command {
	return newClientCmd(&cobra.Command{
		Use:   "copy HANDLE",
		Short: "Put a snippet back on the clipboard",
		Long: `Writes the snippet to the daemon's clipboard. The poller treats the
copied text as already seen, so it is not captured again.`,
		Args: cobra.ExactArgs(1),
	}, defaultTimeout, func(ctx context.Context, _ *cobra.Command, c *grpcservice.Client, _ *viper.Viper, args []string) error {
		h, err := parseHandleArg(args[0])
		if err != nil {
			return err
		}
		ok, err := c.CopyOut(ctx, h)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		if !ok {
			return fmt.Errorf("snippet %s was not copied (unknown handle or clipboard unavailable)", h)
		}
		return nil
	})
}

func newRemoveCmd() *cobra.Command {
	return newClientCmd(&cobra.Command{
		Use:     "rm HANDLE...",
		Aliases: []string{"remove"},
		Short:   "Remove snippets from the history",
		Long:    `Removes each snippet by handle. Unknown handles are reported and skipped.`,
		Args:    cobra.MinimumNArgs(1),
	}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, _ *viper.Viper, args []string) error {
		for _, arg := range args {
			h, err := parseHandleArg(arg)
			if err != nil {
				return err
			}
			ok, err := c.Remove(ctx, h)
			if err != nil {
				return fmt.Errorf("remove %s: %w", h, err)
			}
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "no snippet %s\n", h)
			}
		}
		return nil
	})
}

func newClearCmd() *cobra.Command {
	return newClientCmd(&cobra.Command{
		Use:   "clear",
		Short: "Remove every snippet",
		Args:  cobra.NoArgs,
	}, defaultTimeout, func(ctx context.Context, _ *cobra.Command, c *grpcservice.Client, _ *viper.Viper, _ []string) error {
		return c.Clear(ctx)
	})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func newToggleCmd() *cobra.Command {
	return newClientCmd(&cobra.Command{
		Use:       "toggle [on|off]",
		Short:     "Toggle clipboard auto-capture",
		Long:      `Flips auto-capture, or sets it when "on" or "off" is given. Prints the new state.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
	}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, _ *viper.Viper, args []string) error {
		var (
			enabled bool
			err     error
		)
		if len(args) == 0 {
			enabled, err = c.Toggle(ctx)
		} else {
			enabled, err = c.SetAutoCapture(ctx, args[0] == "on")
		}
		if err != nil {
			return fmt.Errorf("toggle: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "auto-capture %s\n", onOff(enabled))
		return nil
	})
}

func newDraftCmd() *cobra.Command {
	cmd := newClientCmd(&cobra.Command{
		Use:   "draft",
		Short: "Show or edit the in-progress snippet",
		Long: `With no subcommand, prints the draft. The draft is kept by the daemon
and saved with the history.`,
		Args: cobra.NoArgs,
	}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, _ *viper.Viper, _ []string) error {
		d, err := c.Draft(ctx)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), d)
		return err
	})

	cmd.AddCommand(
		newClientCmd(&cobra.Command{
			Use:   "set [TEXT...]",
			Short: "Replace the draft (stdin when no TEXT)",
		}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, _ *viper.Viper, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			return c.SetDraft(ctx, text)
		}),
		newClientCmd(&cobra.Command{
			Use:   "commit",
			Short: "Add the draft to the history and clear it",
			Args:  cobra.NoArgs,
		}, defaultTimeout, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, _ *viper.Viper, _ []string) error {
			h, err := c.CommitDraft(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		}),
	)
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := newClientCmd(&cobra.Command{
		Use:   "watch",
		Short: "Print history changes as they happen",
		Args:  cobra.NoArgs,
	}, 0, func(ctx context.Context, cmd *cobra.Command, c *grpcservice.Client, v *viper.Viper, _ []string) error {
		out := cmd.OutOrStdout()
		jsonOut := v.GetBool("json")
		enc := json.NewEncoder(out)
		return c.Watch(ctx, func(ev grpcservice.Event) error {
			if jsonOut {
				return enc.Encode(watchLine(ev))
			}
			_, err := fmt.Fprintln(out, describeEvent(ev))
			return err
		})
	})
	cmd.Flags().Bool("json", false, "output one JSON object per event")
	return cmd
}

func watchLine(ev grpcservice.Event) map[string]any {
	m := map[string]any{"kind": ev.Kind, "time": time.Now().UTC().Format(time.RFC3339)}
	if ev.Handle != 0 {
		m["handle"] = ev.Handle.String()
	}
	if ev.Text != "" {
		m["text"] = ev.Text
	}
	if ev.Origin != "" {
		m["origin"] = ev.Origin
	}
	if ev.Kind == hub.KindAutoCapture {
		m["auto_capture"] = ev.AutoCapture
	}
	return m
}

func describeEvent(ev grpcservice.Event) string {
	switch ev.Kind {
	case hub.KindAdded:
		return fmt.Sprintf("+ %s (%s) %s", ev.Handle, ev.Origin, oneLine(ev.Text))
	case hub.KindRemoved:
		return fmt.Sprintf("- %s", ev.Handle)
	case hub.KindCleared:
		return "history cleared"
	case hub.KindAutoCapture:
		return "auto-capture " + onOff(ev.AutoCapture)
	case hub.KindDraft:
		return "draft: " + oneLine(ev.Text)
	default:
		return string(ev.Kind)
	}
}
