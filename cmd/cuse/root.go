package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/edelkas/cuse/pkg/cli"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cuse",
	Short: "Cuse - custom userlevel searches for N++",
	Long: `Cuse sits between the N++ client and its server. Level searches made
from the in-game browser are answered by a custom search backend, which
supports far richer filters than the game does, and every other request is
passed through to the real server unchanged.

The client is redirected by rewriting the server address in its library
while the proxy runs. The original address is restored on exit.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the configuration file with environment overrides.
// A missing file falls back to defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// commandLogger builds the logger for one-shot commands. Logs go to w so
// they never mix with command output on stdout.
func commandLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger, err := logging.New(cfg.Telemetry.Logging, w)
	if err != nil {
		return slog.New(slog.NewTextHandler(w, nil))
	}
	return logger
}
