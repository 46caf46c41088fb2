// Package proxy decides how each game client request is answered.
//
// Requests for the level list endpoints are intercepted: the reply comes
// from the last search made against the custom backend, checked against
// the request's mode and patched with the requested page and category. A
// reply that is missing or unfit is replaced by an empty query, so the
// client shows no results instead of failing. Everything else is relayed
// to the real server by the forwarder.
//
// # Request Flow
//
//  1. ParseRequest reads the request line.
//  2. Classify picks RouteIntercept or RouteForward.
//  3. Intercept fetches the requested page when paging is on, then
//     validates and rewrites the session's last reply.
//  4. BuildResponse wraps the payload in a minimal HTTP 200 response.
//
// The engine holds no connection state. pkg/server owns the listener and
// calls Handle once per connection.
package proxy
