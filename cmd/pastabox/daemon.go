package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/pastabox/internal/app"
	"go.klb.dev/pastabox/internal/clip"
	"go.klb.dev/pastabox/internal/crypto"
	"go.klb.dev/pastabox/internal/grpcservice"
	"go.klb.dev/pastabox/internal/ipc"
	"go.klb.dev/pastabox/internal/metrics"
	"go.klb.dev/pastabox/internal/poller"
	"go.klb.dev/pastabox/internal/state"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the clipboard poller and command socket",
		Long: `Starts pastabox. The daemon samples the clipboard every --interval and
appends each new distinct text to the history while auto-capture is on. It
serves the other pastabox commands (gRPC), a small HTTP/JSON API and
Prometheus metrics (GET /metrics) on the same local socket.

State (history, draft and the auto-capture flag) is loaded at start, saved
every --autosave and once more on shutdown. A missing or unreadable state
file is not an error: the daemon starts empty.

Config file search order:
  /etc/pastabox/pastabox.toml
  $HOME/.config/pastabox/pastabox.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → PASTABOX_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}
	addDaemonFlags(cmd)
	return cmd
}

func runDaemon(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)

	cfg, err := loadDaemonConfig(v)
	if err != nil {
		return err
	}
	kind, err := clip.ParseKind(cfg.Backend)
	if err != nil {
		return err
	}
	driver, err := state.ParseDriver(cfg.StateDriver)
	if err != nil {
		return err
	}

	var box *crypto.Box
	if cfg.Passphrase != "" {
		if box, err = crypto.NewBox(cfg.Passphrase); err != nil {
			return fmt.Errorf("state encryption: %w", err)
		}
	}

	// Claim the socket first so a second daemon fails before touching state.
	ln, err := ipc.Listen(cfg.Socket)
	if err != nil {
		return err
	}

	store, err := state.Open(driver, cfg.StateDir)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer store.Close()

	backend, err := clip.Open(kind)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("clipboard: %w", err)
	}
	defer backend.Close()

	m := metrics.New()
	a := app.New(backend, state.Load(ctx, store, box),
		poller.WithInterval(cfg.Interval),
		poller.WithOnOutcome(m.ObservePoll),
	)
	m.TrackStatus(a)

	slog.Info("pastabox daemon starting",
		"version", Version,
		"socket", cfg.Socket,
		"backend", backend.Name(),
		"interval", cfg.Interval,
		"storage", store.Name(),
		"encrypted", box != nil,
		"auto_capture", a.AutoCapture(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	g.Go(func() error { return a.Autosave(ctx, store, box, cfg.Autosave) })
	g.Go(func() error { return grpcservice.Serve(ctx, ln, grpcservice.New(a, Version), grpcservice.WithMetrics(m)) })

	err = g.Wait()
	slog.Info("pastabox daemon stopped", "err", err)
	return err
}

func newConfigCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective daemon configuration as TOML",
		Long: `Merges defaults, the config file, PASTABOX_* env vars and flags the same
way "pastabox daemon" does, then prints the result in config-file form. The
output can be saved as pastabox.toml.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadDaemonConfig(v)
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg.file(v.GetBool("reveal")))
		},
	}
	addDaemonFlags(cmd)
	cmd.Flags().Bool("reveal", false, "print the passphrase instead of masking it")
	return cmd
}
