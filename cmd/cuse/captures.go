package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/edelkas/cuse/pkg/capture"
	"github.com/edelkas/cuse/pkg/cli"
)

var capturesFlags struct {
	route     string
	limit     int
	format    string
	dir       string
	olderThan time.Duration
}

var capturesCmd = &cobra.Command{
	Use:   "captures",
	Short: "Inspect recorded request/response exchanges",
	Long: `Inspect exchanges recorded by a proxy running with capture enabled and
the sqlite backend. Memory captures are only reachable through the admin
listener while the proxy runs.`,
}

var capturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded exchanges, newest first",
	Long: `List recorded exchanges, newest first.

Examples:
  cuse captures list
  cuse captures list --route intercept --limit 10
  cuse captures list --format csv > captures.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(capturesFlags.format)
		if err != nil {
			return cli.NewConfigError("format", err.Error())
		}

		list, err := listCaptures(cmd.Context())
		if err != nil {
			return err
		}
		if format == cli.FormatJSON {
			return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), list)
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), exchangeTable(list))
	},
}

var capturesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write recorded requests and responses to files",
	Long: `Write the raw bytes of recorded exchanges to DIR as req_<seq> and
res_<seq>, ready for "cuse decode".

Examples:
  cuse captures export --dir dumps --route intercept`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := listCaptures(cmd.Context())
		if err != nil {
			return err
		}
		n, err := exportCaptures(capturesFlags.dir, list)
		if err != nil {
			return cli.NewCommandError("captures export", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d files to %s\n", n, capturesFlags.dir)
		return nil
	},
}

var capturesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete recorded exchanges older than a given age",
	Long: `Delete recorded exchanges older than --older-than. A running proxy does
the same on capture.prune_schedule when capture.max_age is set.

Examples:
  cuse captures prune --older-than 24h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if capturesFlags.olderThan <= 0 {
			return cli.NewConfigError("older-than", "must be positive")
		}
		store, err := openCaptureStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := capture.NewPruner(store, capturesFlags.olderThan, "", nil).Prune(cmd.Context())
		if err != nil {
			return cli.NewCommandError("captures prune", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d exchanges\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(capturesCmd)
	capturesCmd.AddCommand(capturesListCmd, capturesExportCmd, capturesPruneCmd)

	capturesCmd.PersistentFlags().StringVar(&capturesFlags.route, "route", "", "only show one route (intercept, forward)")
	capturesCmd.PersistentFlags().IntVarP(&capturesFlags.limit, "limit", "n", 50, "maximum number of exchanges (0 for all)")
	capturesListCmd.Flags().StringVarP(&capturesFlags.format, "format", "f", "text", "output format (text, json, csv)")
	capturesExportCmd.Flags().StringVarP(&capturesFlags.dir, "dir", "d", "captures", "output directory")
	capturesPruneCmd.Flags().DurationVar(&capturesFlags.olderThan, "older-than", 0, "delete exchanges older than this")
}

// openCaptureStore opens the sqlite capture store of the configuration.
func openCaptureStore() (capture.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Capture.Backend != "sqlite" {
		return nil, cli.NewConfigError("capture.backend",
			fmt.Sprintf("%q captures cannot be read from another process, use the sqlite backend", cfg.Capture.Backend))
	}

	store, err := capture.OpenStore(cfg.Capture)
	if err != nil {
		return nil, cli.NewCommandError("captures", err)
	}
	return store, nil
}

func listCaptures(ctx context.Context) ([]*capture.Exchange, error) {
	store, err := openCaptureStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	list, err := store.List(ctx, capture.ListOptions{Route: capturesFlags.route, Limit: capturesFlags.limit})
	if err != nil {
		return nil, cli.NewCommandError("captures", err)
	}
	return list, nil
}

// exportCaptures writes one file per recorded request and response.
func exportCaptures(dir string, list []*capture.Exchange) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	var n int
	for _, e := range list {
		files := []struct {
			prefix string
			data   []byte
		}{{"req", e.Request}, {"res", e.Response}}
		for _, f := range files {
			if len(f.data) == 0 {
				continue
			}
			name := filepath.Join(dir, fmt.Sprintf("%s_%d", f.prefix, e.Seq))
			if err := os.WriteFile(name, f.data, 0o644); err != nil {
				return n, fmt.Errorf("write %s: %w", name, err)
			}
			n++
		}
	}
	return n, nil
}

type exchangeTable []*capture.Exchange

func (t exchangeTable) Header() []string {
	return []string{"seq", "time", "route", "method", "path", "request", "response", "duration", "error"}
}

func (t exchangeTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			strconv.FormatInt(e.Seq, 10),
			e.Time.Format(time.DateTime),
			e.Route,
			e.Method,
			e.Path,
			strconv.Itoa(len(e.Request)),
			strconv.Itoa(len(e.Response)),
			e.Duration.Round(time.Millisecond).String(),
			e.Error,
		})
	}
	return rows
}
