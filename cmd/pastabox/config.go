package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/pastabox/internal/app"
	"go.klb.dev/pastabox/internal/ipc"
	"go.klb.dev/pastabox/internal/logging"
	"go.klb.dev/pastabox/internal/poller"
	"go.klb.dev/pastabox/internal/state"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and PASTABOX_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → PASTABOX_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("pastabox")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/pastabox/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/pastabox", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("PASTABOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addSocketFlag adds the --socket flag shared by the daemon and its clients.
func addSocketFlag(cmd *cobra.Command) {
	cmd.Flags().String("socket", ipc.SocketPath(), "IPC socket (named pipe on Windows)")
}

// addDaemonFlags adds every flag the daemon reads.
func addDaemonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", "auto", "clipboard backend: auto|native|exec|osc52|memory")
	f.Duration("interval", poller.DefaultInterval, "clipboard polling interval")
	f.String("state-driver", string(state.DriverFile), "state storage: file|sqlite")
	f.String("state-dir", state.DefaultDir(), "directory holding saved state")
	f.String("passphrase", "", "encrypt saved state with this passphrase (empty = plaintext)")
	f.Duration("autosave", app.DefaultAutosave, "interval between state saves (0 = only on shutdown)")
	addSocketFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// daemonConfig is the effective daemon configuration after all sources are
// merged.
type daemonConfig struct {
	Socket      string
	Backend     string
	Interval    time.Duration
	StateDriver string
	StateDir    string
	Passphrase  string
	Autosave    time.Duration
	LogFormat   string
	LogLevel    string
}

func loadDaemonConfig(v *viper.Viper) (daemonConfig, error) {
	cfg := daemonConfig{
		Socket:      v.GetString("socket"),
		Backend:     v.GetString("backend"),
		Interval:    v.GetDuration("interval"),
		StateDriver: v.GetString("state-driver"),
		StateDir:    v.GetString("state-dir"),
		Passphrase:  v.GetString("passphrase"),
		Autosave:    v.GetDuration("autosave"),
		LogFormat:   v.GetString("log-format"),
		LogLevel:    v.GetString("log-level"),
	}
	if cfg.Interval <= 0 {
		return cfg, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.StateDir == "" {
		return cfg, errors.New("state-dir must not be empty")
	}
	return cfg, nil
}

// fileConfig is daemonConfig in config-file form.
type fileConfig struct {
	Socket      string `toml:"socket"`
	Backend     string `toml:"backend"`
	Interval    string `toml:"interval"`
	StateDriver string `toml:"state-driver"`
	StateDir    string `toml:"state-dir"`
	Passphrase  string `toml:"passphrase,omitempty"`
	Autosave    string `toml:"autosave"`
	LogFormat   string `toml:"log-format"`
	LogLevel    string `toml:"log-level,omitempty"`
}

// file returns cfg as it would be written in a config file. A set
// passphrase is masked unless reveal is true.
func (c daemonConfig) file(reveal bool) fileConfig {
	pass := c.Passphrase
	if pass != "" && !reveal {
		pass = "********"
	}
	return fileConfig{
		Socket:      c.Socket,
		Backend:     c.Backend,
		Interval:    c.Interval.String(),
		StateDriver: c.StateDriver,
		StateDir:    c.StateDir,
		Passphrase:  pass,
		Autosave:    c.Autosave.String(),
		LogFormat:   c.LogFormat,
		LogLevel:    c.LogLevel,
	}
}
