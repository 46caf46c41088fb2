package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// ConnIDKey is the context key for client connection ids.
	ConnIDKey contextKey = "conn_id"

	// RequestIDKey is the context key for admin request ids.
	RequestIDKey contextKey = "request_id"

	// RouteKey is the context key for the chosen route of a proxied request.
	RouteKey contextKey = "route"
)

// WithConnID adds a connection id to the context.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConnIDKey, id)
}

// GetConnID retrieves the connection id from the context.
func GetConnID(ctx context.Context) string {
	if id, ok := ctx.Value(ConnIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRoute records whether a request was intercepted or forwarded.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

// GetRoute retrieves the route from the context.
func GetRoute(ctx context.Context) string {
	if route, ok := ctx.Value(RouteKey).(string); ok {
		return route
	}
	return ""
}

// contextAttrs extracts the known fields from ctx, including the active
// span's trace and span ids.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if id := GetConnID(ctx); id != "" {
		attrs = append(attrs, slog.String("conn_id", id))
	}
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if route := GetRoute(ctx); route != "" {
		attrs = append(attrs, slog.String("route", route))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}
