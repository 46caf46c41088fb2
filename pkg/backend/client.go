package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/netio"
	"github.com/edelkas/cuse/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Recorder receives one event per backend round trip.
type Recorder interface {
	RecordBackendQuery(outcome string, duration time.Duration, replyBytes int)
}

// Client talks to the search backend. Every query uses a fresh TCP
// connection: the query line is written, the write side is closed, and the
// reply is read until the backend closes or goes quiet for the configured
// timeout.
//
// Queries are serialized; at most one is in flight per client.
type Client struct {
	address     string
	dialTimeout time.Duration
	timeout     time.Duration

	mu       sync.Mutex
	dialer   *net.Dialer
	logger   *slog.Logger
	recorder Recorder
	tracer   *tracing.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithTracer sets the tracer used for "backend.query" spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a client for the backend described by cfg.
func New(cfg config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		address:     cfg.Address,
		dialTimeout: cfg.DialTimeout,
		timeout:     cfg.Timeout,
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = config.DefaultBackendDialTimeout
	}
	if c.timeout <= 0 {
		c.timeout = config.DefaultBackendTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "backend")
	if c.tracer == nil {
		c.tracer = tracing.Noop()
	}
	c.dialer = &net.Dialer{Timeout: c.dialTimeout}
	return c
}

// Address returns the backend address.
func (c *Client) Address() string {
	return c.address
}

// Message renders the query line sent to the backend. page is 1-based.
func Message(page int, filterQuery string) string {
	return "page " + strconv.Itoa(page) + " " + filterQuery
}

// Query asks the backend for one page of results and returns the raw reply.
//
// A backend that accepts the connection but stays silent yields ErrNoReply.
// A failed dial yields a *DialError.
func (c *Client) Query(ctx context.Context, page int, filterQuery string) (reply []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := Message(page, filterQuery)
	ctx, span := c.tracer.Start(ctx, "backend.query")
	span.SetAttributes(
		attribute.Int(tracing.AttrSearchPage, page),
		attribute.String("net.peer.address", c.address),
	)

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int(tracing.AttrBytes, len(reply)))
		tracing.End(span, err)
		if c.recorder != nil {
			c.recorder.RecordBackendQuery(Outcome(err), elapsed, len(reply))
		}
	}()

	c.logger.DebugContext(ctx, "requesting backend", "message", msg)

	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		c.logger.ErrorContext(ctx, "unable to connect to backend", "address", c.address, "error", err)
		return nil, &DialError{Address: c.address, Err: err}
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("backend: set write deadline: %w", err)
	}
	if _, err := conn.Write([]byte(msg)); err != nil {
		return nil, fmt.Errorf("backend: write query: %w", err)
	}
	if tcp, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := tcp.CloseWrite(); err != nil {
			return nil, fmt.Errorf("backend: close write: %w", err)
		}
	}

	reply, err = netio.ReadUntilIdle(ctx, conn, c.timeout, nil)
	if err != nil {
		return reply, fmt.Errorf("backend: read reply: %w", err)
	}
	if len(reply) == 0 {
		c.logger.ErrorContext(ctx, "connection to backend timed out")
		return nil, ErrNoReply
	}

	c.logger.DebugContext(ctx, "received backend reply",
		"bytes", len(reply),
		"duration", time.Since(start),
	)
	return reply, nil
}

// Ping dials the backend and closes the connection without sending a
// query. It backs the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return &DialError{Address: c.address, Err: err}
	}
	return conn.Close()
}
