// Package search turns filter sets into backend queries and keeps track of
// the player's browsing session.
//
// A FilterSet is normalized before use (length limits, date clamping, range
// swaps, incompatible filters), then identified by its CacheKey: the
// enabled filters as lower-cased name/value pairs in a stable order, so
// equivalent searches share a cache slot. The Searcher serves a search from
// the cache when it can and asks the backend otherwise, remembering the
// raw reply in the Session for the interception engine to replay.
//
// A Watcher lets an external editor drive searches by saving a YAML file.
package search
