package proxy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edelkas/cuse/pkg/backend"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/search"
	"github.com/edelkas/cuse/pkg/telemetry/logging"
	"github.com/edelkas/cuse/pkg/telemetry/tracing"
	"github.com/edelkas/cuse/pkg/wire"

	"go.opentelemetry.io/otel/attribute"
)

// Route is where a client request is answered from.
type Route string

const (
	// RouteIntercept requests are answered from the search backend.
	RouteIntercept Route = "intercept"

	// RouteForward requests are relayed to the real server.
	RouteForward Route = "forward"
)

// Request outcomes, used as metric labels. Rejected backend replies use the
// wire.Reason of the rejection instead, and failed page fetches the
// backend.Outcome of the failure.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Forwarder relays a raw request to the real server.
type Forwarder interface {
	Forward(ctx context.Context, raw []byte) ([]byte, error)
}

// Searcher runs searches against the backend and owns the session whose
// last reply answers intercepted requests.
type Searcher interface {
	FetchPage(ctx context.Context, offset int) (*search.Result, error)
	Session() *search.Session
}

// Recorder receives per-request metrics.
type Recorder interface {
	RecordRequest(route, outcome string, d time.Duration, bytes int)
}

// Result describes how one request was answered.
type Result struct {
	Route    Route
	Method   string
	Path     string
	Outcome  string
	Response []byte
}

// Engine classifies client requests and builds their responses.
type Engine struct {
	cfg       config.ProxyConfig
	searcher  Searcher
	forwarder Forwarder
	logger    *slog.Logger
	recorder  Recorder
	tracer    *tracing.Tracer
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder reports request metrics to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer traces interceptions with t.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock replaces time.Now, which stamps empty query payloads.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine answering level queries through searcher and
// relaying everything else through fwd.
func NewEngine(cfg config.ProxyConfig, searcher Searcher, fwd Forwarder, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		searcher:  searcher,
		forwarder: fwd,
		logger:    slog.Default(),
		tracer:    tracing.Noop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.LevelsEndpoint == "" {
		e.cfg.LevelsEndpoint = config.DefaultLevelsEndpoint
	}
	if e.cfg.AllTabsEndpoint == "" {
		e.cfg.AllTabsEndpoint = config.DefaultAllTabsEndpoint
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// Classify decides whether req is intercepted. Only GET requests for the
// levels endpoint, and the all-tabs endpoint when enabled, are.
func (e *Engine) Classify(req *Request) Route {
	if !e.cfg.Intercept || req.Method != "GET" {
		return RouteForward
	}
	switch {
	case req.Endpoint == e.cfg.LevelsEndpoint:
		return RouteIntercept
	case e.cfg.InterceptAllTabs && req.Endpoint == e.cfg.AllTabsEndpoint:
		return RouteIntercept
	default:
		return RouteForward
	}
}

// Handle answers one raw client request. The result is returned even on
// error, so that callers can log and capture what happened.
func (e *Engine) Handle(ctx context.Context, raw []byte) (*Result, error) {
	start := time.Now()

	req, err := ParseRequest(raw)
	if err != nil {
		e.record(&Result{Route: RouteForward, Outcome: OutcomeError}, start)
		return nil, err
	}

	res := &Result{
		Route:  e.Classify(req),
		Method: req.Method,
		Path:   req.Path,
	}
	ctx = logging.WithRoute(ctx, string(res.Route))

	switch res.Route {
	case RouteIntercept:
		e.logger.DebugContext(ctx, "intercepting", "method", req.Method, "endpoint", req.Endpoint)
		res.Response, res.Outcome = e.Intercept(ctx, req)
	default:
		e.logger.DebugContext(ctx, "forwarding", "method", req.Method, "endpoint", req.Endpoint)
		res.Response, err = e.forwarder.Forward(ctx, raw)
		res.Outcome = OutcomeOK
		if err != nil {
			res.Outcome = OutcomeError
		}
	}

	e.record(res, start)
	return res, err
}

// Intercept answers a level query. With paging on, the requested page is
// fetched first. The session's last backend reply is then checked against
// the request and, if unfit, replaced by an empty query. A page the backend
// could not deliver is also answered with an empty query. The outcome is
// OutcomeOK or the reason the reply was rejected.
func (e *Engine) Intercept(ctx context.Context, req *Request) ([]byte, string) {
	ctx, span := e.tracer.Start(ctx, "proxy.intercept")
	defer span.End()

	params := ParseParams(req.Query)
	span.SetAttributes(
		attribute.String(tracing.AttrMode, params.Mode.String()),
		attribute.Int64(tracing.AttrCategory, int64(params.Category)),
		attribute.Int64(tracing.AttrSearchPage, int64(params.Page)),
	)

	session := e.searcher.Session()
	var fetchErr error
	if e.cfg.Paging {
		res, err := e.searcher.FetchPage(ctx, int(params.Page))
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to fetch page", "page", params.Page, "error", err)
			tracing.SetError(span, err)
			fetchErr = err
		} else {
			tracing.SetSearchAttributes(span, res.Key, res.Page, res.Cached)
		}
	}

	var body []byte
	var outcome string
	if errors.Is(fetchErr, search.ErrBackend) {
		body, _ = e.Payload(nil, params)
		outcome = backend.Outcome(fetchErr)
	} else {
		body, outcome = e.Payload(session.LastReply(), params)
	}
	session.Served()
	span.SetAttributes(attribute.Int(tracing.AttrBytes, len(body)))
	if outcome != OutcomeOK {
		span.SetAttributes(attribute.String(tracing.AttrRejectReason, outcome))
	}
	return BuildResponse(body), outcome
}

// Payload checks raw is fit to answer a query with the given parameters
// and patches its page and category. Unfit replies are replaced by an
// empty query.
func (e *Engine) Payload(raw []byte, params Params) ([]byte, string) {
	c, err := wire.DecodeCollection(raw, params.Mode)
	if err != nil {
		reason := wire.Reason(err)
		e.logger.Debug("replying with empty query", "reason", reason, "error", err)
		return wire.EncodeEmptyQuery(params.Category, params.Mode, e.now()), reason
	}
	e.logger.Debug("replying with levels", "levels", c.Len(), "page", params.Page, "category", params.Category)
	return wire.RewriteForPage(raw, params.Page, params.Category), OutcomeOK
}

func (e *Engine) record(res *Result, start time.Time) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordRequest(string(res.Route), res.Outcome, time.Since(start), len(res.Response))
}
