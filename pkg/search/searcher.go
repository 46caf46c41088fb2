package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edelkas/cuse/pkg/cache"
	"github.com/edelkas/cuse/pkg/wire"
)

// ErrBackend wraps every failure to get a reply from the search backend,
// as opposed to a reply that arrived but could not be decoded.
var ErrBackend = errors.New("search: backend query failed")

// Querier sends one page query to the search backend. page is 1-based.
type Querier interface {
	Query(ctx context.Context, page int, filterQuery string) ([]byte, error)
}

// DecodeRecorder receives the result of decoding each backend reply.
type DecodeRecorder interface {
	RecordDecode(reason string, levels int)
}

// Listener is called with every collection decoded from a fresh backend
// reply. It must not modify the collection.
type Listener func(*wire.LevelCollection)

// Result is the outcome of a search.
type Result struct {
	// Collection is nil when the reply could not be decoded.
	Collection *wire.LevelCollection
	Key        string
	Page       int
	Cached     bool
	Warnings   []string
}

// Searcher runs searches against the backend, going through the cache.
// Backend round trips are serialized.
type Searcher struct {
	backend Querier
	cache   *cache.Cache
	session *Session

	mu        sync.Mutex
	logger    *slog.Logger
	recorder  DecodeRecorder
	now       func() time.Time
	listeners []Listener
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithDecodeRecorder sets the metrics recorder for decoded replies.
func WithDecodeRecorder(r DecodeRecorder) Option {
	return func(s *Searcher) { s.recorder = r }
}

// WithClock sets the clock used to normalize date filters.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// WithListener registers a listener for freshly decoded collections.
func WithListener(l Listener) Option {
	return func(s *Searcher) { s.listeners = append(s.listeners, l) }
}

// NewSearcher creates a searcher. session may be nil, in which case a new
// one is created.
func NewSearcher(backend Querier, c *cache.Cache, session *Session, opts ...Option) *Searcher {
	if session == nil {
		session = NewSession()
	}
	s := &Searcher{
		backend: backend,
		cache:   c,
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "search")
	return s
}

// Session returns the session the searcher updates.
func (s *Searcher) Session() *Session {
	return s.session
}

// Subscribe registers l for freshly decoded collections.
func (s *Searcher) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Execute normalizes set, makes it the active search and fetches the root
// page, from the cache if possible.
func (s *Searcher) Execute(ctx context.Context, set FilterSet) (*Result, error) {
	set = set.Clone()
	warnings := set.Normalize(s.now())
	if len(warnings) > 0 {
		s.logger.WarnContext(ctx, "some filters were fixed", "warnings", warnings)
	}
	s.session.SetActive(set)

	res, err := s.fetch(ctx, set, s.session.RootPage())
	if res != nil {
		res.Warnings = warnings
	}
	return res, err
}

// FetchPage fetches the page offset rows below the root page of the active
// search. It backs in-game scrolling.
func (s *Searcher) FetchPage(ctx context.Context, offset int) (*Result, error) {
	return s.fetch(ctx, s.session.Active(), s.session.RootPage()+max(offset, 0))
}

func (s *Searcher) fetch(ctx context.Context, set FilterSet, page int) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := PageKey(set.CacheKey(), page)
	res := &Result{Key: key, Page: page}

	if c, ok := s.cache.Get(key); ok && c != nil {
		s.logger.DebugContext(ctx, "found cached block", "levels", c.Len(), "page", page)
		s.session.Remember(key, page, c.Raw)
		res.Collection, res.Cached = c, true
		return res, nil
	}

	raw, err := s.backend.Query(ctx, page+1, set.Query())
	if err != nil {
		// The page now has no reply. Keeping the previous one would answer
		// this page with another page's levels.
		s.session.Remember(key, page, nil)
		return res, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	s.session.Remember(key, page, raw)

	c, err := wire.Parse(raw)
	if s.recorder != nil {
		n := 0
		if c != nil {
			n = c.Len()
		}
		s.recorder.RecordDecode(wire.Reason(err), n)
	}
	if err != nil {
		s.logger.DebugContext(ctx, "backend reply not cacheable", "reason", wire.Reason(err), "error", err)
		return res, fmt.Errorf("search: %w", err)
	}
	c.Key = key
	s.cache.Put(key, c)
	res.Collection = c

	if !c.Complete() {
		s.logger.WarnContext(ctx, "backend reply truncated",
			"announced", c.Header.Count,
			"decoded", c.Len(),
		)
	}
	for _, l := range s.listeners {
		l(c)
	}
	return res, nil
}
