package forwarder

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/telemetry/logging"
	"github.com/edelkas/cuse/pkg/telemetry/tracing"
)

// strippedHeaders are dropped from client requests before they go
// upstream. Host is replaced with the target host.
var strippedHeaders = []string{
	"Accept",
	"Accept-Encoding",
	"User-Agent",
	"Host",
	"Content-Length",
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Transfer-Encoding",
	"Upgrade",
	"Te",
	"Trailer",
}

// Forwarder relays client requests to the real game server over HTTPS and
// turns the answer back into one raw HTTP message.
type Forwarder struct {
	target  *url.URL
	timeout time.Duration
	client  *http.Client
	logger *slog.Logger
	tracer *tracing.Tracer
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient replaces the HTTP client. Tests use it to trust a local
// TLS server.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) { f.client = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Forwarder) { f.logger = l }
}

// WithTracer sets the tracer used for "proxy.forward" spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(f *Forwarder) { f.tracer = t }
}

// New creates a forwarder for the upstream described by cfg.
func New(cfg config.UpstreamConfig, opts ...Option) (*Forwarder, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("forwarder: parse upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("forwarder: upstream url %q needs a scheme and host", cfg.URL)
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = config.DefaultUpstreamReadTimeout
	}

	f := &Forwarder{
		target:  target,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				ResponseHeaderTimeout: timeout,
				DisableCompression:    true,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.InsecureSkipVerify,
				},
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "forwarder")
	if f.tracer == nil {
		f.tracer = tracing.Noop()
	}
	return f, nil
}

// Target returns the upstream base URL.
func (f *Forwarder) Target() *url.URL {
	return f.target
}

// Forward sends raw upstream and returns the upstream response serialized
// as raw HTTP/1.1. The whole exchange, body included, must finish within
// the upstream read timeout.
func (f *Forwarder) Forward(ctx context.Context, raw []byte) (res []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	ctx, span := f.tracer.Start(ctx, "proxy.forward")
	defer func() { tracing.End(span, err) }()

	req, err := f.BuildRequest(ctx, raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		tracing.SetHTTPAttributes(span, req.Method, req.URL.Path, 0)
		return nil, &UpstreamError{Method: req.Method, URL: logging.RedactPath(req.URL.String()), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Method: req.Method, URL: logging.RedactPath(req.URL.String()), Err: err}
	}
	tracing.SetHTTPAttributes(span, req.Method, req.URL.Path, resp.StatusCode)

	f.logger.DebugContext(ctx, "received upstream response",
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return Serialize(resp, body), nil
}

// BuildRequest parses a raw client request and returns the equivalent
// upstream request.
func (f *Forwarder) BuildRequest(ctx context.Context, raw []byte) (*http.Request, error) {
	in, body, err := parseRaw(raw)
	if err != nil {
		return nil, err
	}
	if in.Method != http.MethodGet && in.Method != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, in.Method)
	}

	target := f.target.Scheme + "://" + f.target.Host +
		strings.TrimSuffix(f.target.EscapedPath(), "/") +
		UpstreamPath(in.URL.EscapedPath())
	if in.URL.RawQuery != "" {
		target += "?" + in.URL.RawQuery
	}

	var rd io.Reader
	if in.Method == http.MethodPost {
		rd = bytes.NewReader(body)
	}
	out, err := http.NewRequestWithContext(ctx, in.Method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	out.Header = in.Header.Clone()
	for _, h := range strippedHeaders {
		out.Header.Del(h)
	}
	// Go would otherwise fill in its own user agent.
	out.Header["User-Agent"] = nil
	out.Host = f.target.Host
	return out, nil
}

// UpstreamPath maps a client path onto the upstream. The patched client
// prefixes every path with a segment of its own; it is removed unless the
// path already starts at /prod.
func UpstreamPath(p string) string {
	if strings.HasPrefix(p, "/prod") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	rest := p[1:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return "/"
}

// Serialize renders resp as an HTTP/1.1 message with body. Header names are
// lower-cased and sorted, each with its first value. Content-Length always
// reflects body and Transfer-Encoding is dropped, since body is complete.
func Serialize(resp *http.Response, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 ")
	if resp.Status != "" {
		b.WriteString(resp.Status)
	} else {
		b.WriteString(strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode))
	}
	b.WriteString("\r\n")

	headers := make(map[string]string, len(resp.Header)+1)
	for k, v := range resp.Header {
		k = strings.ToLower(k)
		if k == "transfer-encoding" || k == "content-length" || len(v) == 0 {
			continue
		}
		headers[k] = v[0]
	}
	headers["content-length"] = strconv.Itoa(len(body))

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteString(k + ": " + headers[k] + "\r\n")
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}

// parseRaw reads one HTTP request out of raw. A body shorter than its
// declared length is kept as is.
func parseRaw(raw []byte) (*http.Request, []byte, error) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil, fmt.Errorf("%w: body: %v", ErrMalformedRequest, err)
	}
	return req, body, nil
}
