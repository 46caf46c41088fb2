package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/edelkas/cuse/pkg/backend"
	"github.com/edelkas/cuse/pkg/cache"
	"github.com/edelkas/cuse/pkg/capture"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/search"
	"github.com/edelkas/cuse/pkg/server/middleware"
	"github.com/edelkas/cuse/pkg/telemetry/health"
	"github.com/edelkas/cuse/pkg/wire"
)

// maxSearchBody bounds POST /api/search bodies.
const maxSearchBody = 64 << 10

// AdminDeps are the components the admin listener exposes.
type AdminDeps struct {
	Searcher    *search.Searcher
	Cache       *cache.Cache
	Health      *health.Checker
	Version     health.VersionInfo
	Metrics     http.Handler
	MetricsPath string
	Captures    capture.Store
	Hub         *Hub
	Logger      *slog.Logger
}

// Admin is the local HTTP listener used by the filter editor and the
// results viewer.
type Admin struct {
	cfg        config.AdminConfig
	deps       AdminDeps
	logger     *slog.Logger
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// SearchResponse is the body of a successful POST /api/search.
type SearchResponse struct {
	Key        string               `json:"key"`
	Page       int                  `json:"page"`
	Cached     bool                 `json:"cached"`
	Warnings   []string             `json:"warnings,omitempty"`
	Collection *wire.LevelCollection `json:"collection"`
}

// CacheResponse is the body of GET /api/cache.
type CacheResponse struct {
	Len      int           `json:"len"`
	Capacity int           `json:"capacity"`
	TTL      string        `json:"ttl"`
	Entries  []cache.Entry `json:"entries"`
}

// NewAdmin creates the admin listener. Nil dependencies leave their routes
// unmounted.
func NewAdmin(cfg config.AdminConfig, deps AdminDeps) *Admin {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultPrometheusPath
	}
	if deps.Health == nil {
		deps.Health = health.New(health.DefaultCheckTimeout)
	}
	a := &Admin{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "admin"),
	}
	a.httpServer = &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return a
}

// Handler returns the admin routes wrapped in the middleware chain.
func (a *Admin) Handler() http.Handler {
	mux := http.NewServeMux()

	health.Mount(mux, a.deps.Health, a.deps.Version)
	if a.deps.Metrics != nil {
		mux.Handle("GET "+a.deps.MetricsPath, a.deps.Metrics)
	}
	if a.deps.Searcher != nil {
		mux.HandleFunc("POST /api/search", a.handleSearch)
		mux.HandleFunc("GET /api/session", a.handleSession)
	}
	if a.deps.Cache != nil {
		mux.HandleFunc("GET /api/cache", a.handleCache)
	}
	if a.deps.Captures != nil {
		mux.HandleFunc("GET /api/captures", a.handleCaptures)
	}
	if a.deps.Hub != nil {
		mux.Handle("GET /ws/collections", a.deps.Hub)
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(a.cfg.AllowedOrigins)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(a.logger)(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

// Listen binds the admin address.
func (a *Admin) Listen() (net.Addr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", a.cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", a.cfg.ListenAddress, err)
	}
	a.listener = ln
	return ln.Addr(), nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *Admin) Start(ctx context.Context) error {
	addr, err := a.Listen()
	if err != nil {
		return err
	}
	a.logger.Info("starting admin listener", "address", addr.String())

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the listener, waiting up to the shutdown timeout for
// in-flight requests.
func (a *Admin) Shutdown(ctx context.Context) error {
	timeout := a.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultAdminShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if a.deps.Hub != nil {
		a.deps.Hub.Close()
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin shutdown error: %w", err)
	}
	a.logger.Info("admin listener stopped")
	return nil
}

func (a *Admin) handleSearch(w http.ResponseWriter, r *http.Request) {
	var set search.FilterSet
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody))
	if err := dec.Decode(&set); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid filter set: %w", err))
		return
	}
	if set.Name == "" {
		set.Name = "api"
	}

	res, err := a.deps.Searcher.Execute(r.Context(), search.Complete(set))
	if err != nil {
		status := http.StatusBadGateway
		if !errors.Is(err, backend.ErrNoReply) && !isDialError(err) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Key:        res.Key,
		Page:       res.Page,
		Cached:     res.Cached,
		Warnings:   res.Warnings,
		Collection: res.Collection,
	})
}

func (a *Admin) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Searcher.Session().Snapshot())
}

func (a *Admin) handleCache(w http.ResponseWriter, r *http.Request) {
	c := a.deps.Cache
	writeJSON(w, http.StatusOK, CacheResponse{
		Len:      c.Len(),
		Capacity: c.Capacity(),
		TTL:      c.TTL().String(),
		Entries:  c.Entries(),
	})
}

func (a *Admin) handleCaptures(w http.ResponseWriter, r *http.Request) {
	opts := capture.ListOptions{Route: r.URL.Query().Get("route"), Limit: 50}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		opts.Limit = n
	}

	list, err := a.deps.Captures.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []*capture.Exchange{}
	}
	writeJSON(w, http.StatusOK, list)
}

func isDialError(err error) bool {
	var de *backend.DialError
	return errors.As(err, &de)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	writeJSON(w, code, middleware.ErrorBody{
		Error:     err.Error(),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
