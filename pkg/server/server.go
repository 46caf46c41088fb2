package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/netio"
	"github.com/edelkas/cuse/pkg/proxy"
	"github.com/edelkas/cuse/pkg/telemetry/logging"
	"github.com/edelkas/cuse/pkg/telemetry/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Handler answers one raw client request.
type Handler interface {
	Handle(ctx context.Context, raw []byte) (*proxy.Result, error)
}

// Capturer records client exchanges.
type Capturer interface {
	Capture(ctx context.Context, route, method, path string, req, res []byte, d time.Duration, err error)
}

// Server accepts game client connections and answers them one at a time.
type Server struct {
	cfg      config.ProxyConfig
	skipPort int
	handler  Handler
	logger   *slog.Logger
	tracer   *tracing.Tracer
	capture  Capturer

	mu       sync.Mutex
	listener net.Listener
	served   atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer traces every connection with t.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithCapture records every exchange with c.
func WithCapture(c Capturer) Option {
	return func(s *Server) { s.capture = c }
}

// WithSkipPort keeps the listener off port, which is the backend's.
func WithSkipPort(port int) Option {
	return func(s *Server) { s.skipPort = port }
}

// New creates a server for cfg.ListenAddress handing requests to h.
func New(cfg config.ProxyConfig, h Handler, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		handler: h,
		logger:  slog.Default(),
		tracer:  tracing.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.ClientTimeout <= 0 {
		s.cfg.ClientTimeout = config.DefaultClientTimeout
	}
	if s.cfg.WriteTimeout <= 0 {
		s.cfg.WriteTimeout = config.DefaultWriteTimeout
	}
	s.logger = s.logger.With("component", "server")
	return s
}

// Listen binds the listener. When the port is taken the next one is
// tried, skipping the backend port, until a bind succeeds.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	host, portStr, err := net.SplitHostPort(s.cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", s.cfg.ListenAddress, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}
	if port != 0 && port == s.skipPort {
		port++
	}

	for {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			s.listener = ln
			s.logger.Info("listening", "address", ln.Addr().String())
			return ln.Addr(), nil
		}
		if port == 0 || !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}

		s.logger.Debug("port in use, trying next", "port", port)
		port++
		if port == s.skipPort {
			port++
		}
		if port > 65535 {
			return nil, fmt.Errorf("no free port after %s: %w", s.cfg.ListenAddress, err)
		}
	}
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Served returns the number of connections handled.
func (s *Server) Served() int64 {
	return s.served.Load()
}

// Serve accepts connections until ctx is cancelled or Close is called.
// Each connection is read, answered and closed before the next is
// accepted. Failures on one connection never stop the loop.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		s.handleConn(ctx, conn)
	}
}

// Close stops the listener. Serve returns once it notices.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	n := s.served.Add(1)

	connID := uuid.NewString()
	ctx = logging.WithConnID(ctx, connID)
	ctx, span := s.tracer.Start(ctx, "proxy.connection")
	var err error
	defer func() { tracing.End(span, err) }()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic while serving connection",
				"error", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	start := time.Now()
	raw, err := netio.ReadUntilIdle(ctx, conn, s.cfg.ClientTimeout, proxy.RequestComplete)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read request", "error", err)
		return
	}
	if len(raw) == 0 {
		s.logger.DebugContext(ctx, "client sent nothing")
		return
	}

	res, err := s.handler.Handle(ctx, raw)
	var route, method, path string
	var out []byte
	if res != nil {
		route, method, path, out = string(res.Route), res.Method, res.Path, res.Response
		tracing.SetRequestAttributes(span, connID, strconv.FormatInt(n, 10), route)
		tracing.SetHTTPAttributes(span, method, path, 0)
	}
	defer func() {
		if s.capture != nil {
			s.capture.Capture(ctx, route, method, path, raw, out, time.Since(start), err)
		}
	}()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to answer request", "route", route, "path", logging.RedactPath(path), "error", err)
		return
	}

	if werr := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); werr != nil {
		err = werr
		return
	}
	if _, err = conn.Write(out); err != nil {
		s.logger.WarnContext(ctx, "failed to write response", "error", err)
		return
	}
	span.SetAttributes(attribute.Int(tracing.AttrBytes, len(out)))
	s.logger.DebugContext(ctx, "sent response",
		"route", route,
		"bytes", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
