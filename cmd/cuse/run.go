package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/edelkas/cuse/pkg/backend"
	"github.com/edelkas/cuse/pkg/cache"
	"github.com/edelkas/cuse/pkg/capture"
	"github.com/edelkas/cuse/pkg/cli"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/forwarder"
	"github.com/edelkas/cuse/pkg/patcher"
	"github.com/edelkas/cuse/pkg/proxy"
	"github.com/edelkas/cuse/pkg/search"
	"github.com/edelkas/cuse/pkg/server"
	"github.com/edelkas/cuse/pkg/telemetry"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	noPatch       bool
	paging        bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy",
	Long: `Start the proxy with the specified configuration.

The proxy binds the configured address (or the next free port), patches the
client library to point at it, and serves until interrupted. On exit the
library is restored.

Examples:
  # Start with default config
  cuse run

  # Start with custom config
  cuse run --config /etc/cuse/config.yaml

  # Query the backend for every page instead of replaying the last search
  cuse run --paging

  # Validate config without starting
  cuse run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.noPatch, "no-patch", false, "do not patch the client library")
	runCmd.Flags().BoolVar(&runFlags.paging, "paging", false, "query the backend for every page")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.noPatch {
		cfg.Patcher.Enabled = false
	}
	if runFlags.paging {
		cfg.Proxy.Paging = true
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr, versionInfo())
	if err != nil {
		return cli.NewConfigError("telemetry", err.Error())
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	p, err := newProxy(ctx, cfg, tel)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer p.close()

	return p.run(ctx, cmd)
}

// proxyApp owns every long-lived component of a running proxy.
type proxyApp struct {
	cfg    *config.Config
	logger *slog.Logger

	cache    *cache.Cache
	janitor  *cache.Janitor
	backend  *backend.Client
	searcher *search.Searcher
	watcher  *search.Watcher
	capture  *capture.Recorder
	pruner   *capture.Pruner
	server   *server.Server
	admin    *server.Admin
	hub      *server.Hub
	patcher  *patcher.Patcher
	patched  string
}

func newProxy(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (*proxyApp, error) {
	logger := tel.Logger()
	collector := tel.Metrics()
	tracer := tel.Tracer()

	app := &proxyApp{cfg: cfg, logger: logger}

	app.cache = cache.New(cache.Options{
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
		Recorder: collector,
	})
	app.janitor = cache.NewJanitor(app.cache, cfg.Cache.SweepInterval)
	if err := app.janitor.Start(ctx); err != nil {
		return nil, err
	}

	app.backend = backend.New(cfg.Backend,
		backend.WithLogger(logger),
		backend.WithRecorder(collector),
		backend.WithTracer(tracer),
	)
	fwd, err := forwarder.New(cfg.Upstream,
		forwarder.WithLogger(logger),
		forwarder.WithTracer(tracer),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	app.hub = server.NewHub(cfg.Admin.AllowedOrigins, logger)
	app.searcher = search.NewSearcher(app.backend, app.cache, search.NewSession(),
		search.WithLogger(logger),
		search.WithDecodeRecorder(collector),
		search.WithListener(app.hub.PublishCollection),
	)

	engine := proxy.NewEngine(cfg.Proxy, app.searcher, fwd,
		proxy.WithLogger(logger),
		proxy.WithRecorder(collector),
		proxy.WithTracer(tracer),
	)

	app.capture, err = capture.Open(cfg.Capture, logger)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("capture: %w", err)
	}
	if app.capture != nil {
		app.pruner = capture.NewPruner(app.capture.Store(), cfg.Capture.MaxAge, cfg.Capture.PruneSchedule, logger)
		if err := app.pruner.Start(ctx); err != nil {
			app.close()
			return nil, err
		}
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTracer(tracer),
		server.WithCapture(app.capture),
	}
	if port, ok := backendPort(cfg.Backend.Address); ok {
		opts = append(opts, server.WithSkipPort(port))
	}
	app.server = server.New(cfg.Proxy, engine, opts...)

	checker := tel.Health()
	checker.Register("backend", app.backend.Ping)
	if pinger, ok := app.capture.Store().(interface{ Ping(context.Context) error }); ok {
		checker.Register("capture", pinger.Ping)
	}

	if cfg.Admin.Enabled {
		deps := server.AdminDeps{
			Searcher:    app.searcher,
			Cache:       app.cache,
			Health:      checker,
			Version:     tel.Version(),
			MetricsPath: cfg.Telemetry.Metrics.Path,
			Captures:    app.capture.Store(),
			Hub:         app.hub,
			Logger:      logger,
		}
		if cfg.Telemetry.Metrics.Enabled {
			deps.Metrics = collector.Handler()
		}
		app.admin = server.NewAdmin(cfg.Admin, deps)
	}

	if cfg.Patcher.Enabled {
		path, err := libraryPath(cfg.Patcher)
		if err != nil {
			app.close()
			return nil, err
		}
		app.patcher = patcher.New(path, cfg.Patcher.TargetAddress, patcher.WithLogger(logger))
	}

	return app, nil
}

func (a *proxyApp) run(ctx context.Context, cmd *cobra.Command) error {
	addr, err := a.server.Listen()
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	// Patch with the bound address, which may differ from the configured
	// one when the port was taken.
	if a.patcher != nil {
		local := clientAddress(addr)
		if _, err := a.patcher.Patch(local); err != nil {
			a.logger.Error("failed to patch library", "library", a.patcher.Path(), "error", err)
		} else {
			a.patched = local
		}
	}

	errChan := make(chan error, 2)
	go func() {
		if err := a.server.Serve(ctx); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	if a.admin != nil {
		adminAddr, err := a.admin.Listen()
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			if err := a.admin.Start(ctx); err != nil {
				errChan <- err
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Admin listening on http://%s\n", adminAddr)
	}

	a.startSearch(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Proxy listening on %s\n", addr)
	if a.patched != "" {
		fmt.Fprintf(out, "✓ Library patched: %s\n", a.patcher.Path())
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down...")
		a.logger.Info("shutdown requested", "served", a.server.Served())
		return nil
	}
}

// startSearch runs the search file once and, if configured, re-runs it on
// every change.
func (a *proxyApp) startSearch(ctx context.Context) {
	cfg := a.cfg.Search
	if cfg.File == "" {
		return
	}

	if !cfg.Watch {
		set, err := search.LoadFilterSet(cfg.File)
		if err != nil {
			a.logger.Error("failed to load search file", "path", cfg.File, "error", err)
			return
		}
		if _, err := a.searcher.Execute(ctx, set); err != nil {
			a.logger.Error("initial search failed", "error", err)
		}
		return
	}

	w, err := search.NewWatcher(cfg.File, a.searcher, cfg.Debounce, a.logger)
	if err != nil {
		a.logger.Error("failed to watch search file", "path", cfg.File, "error", err)
		return
	}
	a.watcher = w
	if err := w.Reload(ctx); err != nil {
		a.logger.Error("initial search failed", "error", err)
	}
	go func() {
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("search watcher stopped", "error", err)
		}
	}()
}

// close releases everything in reverse start order. The listener is closed
// before the library is restored so the client cannot reach a dead proxy.
func (a *proxyApp) close() {
	if a.server != nil {
		if err := a.server.Close(); err != nil {
			a.logger.Warn("failed to close listener", "error", err)
		}
	}
	if a.patcher != nil && a.patched != "" {
		if _, err := a.patcher.Unpatch(a.patched); err != nil {
			a.logger.Error("failed to restore library", "library", a.patcher.Path(), "error", err)
		}
	}
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	if a.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Admin.ShutdownTimeout)
		if err := a.admin.Shutdown(ctx); err != nil {
			a.logger.Warn("admin shutdown failed", "error", err)
		}
		cancel()
	}
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if err := a.capture.Close(); err != nil {
		a.logger.Warn("failed to close capture store", "error", err)
	}
	a.logger.Info("proxy stopped")
}

func backendPort(address string) (int, bool) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	return port, true
}
