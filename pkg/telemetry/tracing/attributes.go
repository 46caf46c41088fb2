package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on cuse spans. Custom keys live under "cuse.*".
const (
	AttrConnID    = "cuse.conn_id"
	AttrRequestID = "cuse.request_id"
	AttrRoute     = "cuse.route"

	AttrSearchKey  = "cuse.search.key"
	AttrSearchPage = "cuse.search.page"
	AttrMode       = "cuse.mode"
	AttrCategory   = "cuse.category"

	AttrCacheHit = "cuse.cache.hit"
	AttrLevels   = "cuse.levels"
	AttrBytes    = "cuse.bytes"

	AttrRejectReason = "cuse.reject.reason"

	AttrHTTPMethod = "http.request.method"
	AttrHTTPStatus = "http.response.status_code"
	AttrURLPath    = "url.path"

	AttrErrorMessage = "error.message"
)

// SetRequestAttributes sets the connection and request identifiers.
func SetRequestAttributes(span trace.Span, connID, requestID, route string) {
	span.SetAttributes(
		attribute.String(AttrConnID, connID),
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrRoute, route),
	)
}

// SetSearchAttributes describes a search lookup.
func SetSearchAttributes(span trace.Span, key string, page int, hit bool) {
	span.SetAttributes(
		attribute.String(AttrSearchKey, key),
		attribute.Int(AttrSearchPage, page),
		attribute.Bool(AttrCacheHit, hit),
	)
}

// SetHTTPAttributes describes a forwarded HTTP exchange. status may be zero
// when no response arrived.
func SetHTTPAttributes(span trace.Span, method, path string, status int) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrURLPath, path),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(AttrHTTPStatus, status))
	}
	span.SetAttributes(attrs...)
}

// AddEvent adds an event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
