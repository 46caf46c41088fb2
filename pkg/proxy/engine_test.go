package proxy

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edelkas/cuse/pkg/backend"
	"github.com/edelkas/cuse/pkg/cache"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/search"
	"github.com/edelkas/cuse/pkg/wire"
)

var testNow = time.Date(2024, 3, 10, 15, 4, 0, 0, time.UTC)

type fakeBackend struct {
	mu    sync.Mutex
	pages []int
	reply []byte
	fail  map[int]error
}

func (f *fakeBackend) Query(_ context.Context, page int, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	if err := f.fail[page]; err != nil {
		return nil, err
	}
	return f.reply, nil
}

func (f *fakeBackend) Pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.pages...)
}

type fakeForwarder struct {
	calls [][]byte
	reply []byte
	err   error
}

func (f *fakeForwarder) Forward(_ context.Context, raw []byte) ([]byte, error) {
	f.calls = append(f.calls, raw)
	return f.reply, f.err
}

type requestRecord struct {
	route, outcome string
	bytes          int
}

type fakeRecorder struct{ records []requestRecord }

func (f *fakeRecorder) RecordRequest(route, outcome string, _ time.Duration, n int) {
	f.records = append(f.records, requestRecord{route, outcome, n})
}

func testProxyConfig() config.ProxyConfig {
	return config.ProxyConfig{
		Intercept:       true,
		LevelsEndpoint:  config.DefaultLevelsEndpoint,
		AllTabsEndpoint: config.DefaultAllTabsEndpoint,
	}
}

type harness struct {
	engine    *Engine
	searcher  *search.Searcher
	backend   *fakeBackend
	forwarder *fakeForwarder
	recorder  *fakeRecorder
}

func newHarness(t *testing.T, cfg config.ProxyConfig, reply []byte) *harness {
	t.Helper()
	h := &harness{
		backend:   &fakeBackend{reply: reply},
		forwarder: &fakeForwarder{reply: []byte("HTTP/1.1 200 OK\r\ncontent-length: 2\r\n\r\nhi")},
		recorder:  &fakeRecorder{},
	}
	clock := func() time.Time { return testNow }
	h.searcher = search.NewSearcher(h.backend, cache.New(cache.Options{}), nil, search.WithClock(clock))
	h.engine = NewEngine(cfg, h.searcher, h.forwarder,
		WithClock(clock),
		WithRecorder(h.recorder),
	)
	return h
}

func (h *harness) search(t *testing.T) {
	t.Helper()
	set := search.NewFilterSet("test")
	set.Set(search.FilterTitle, "basics", true)
	// Rejected replies still become the session's last reply.
	_, _ = h.searcher.Execute(context.Background(), set)
}

func levelsRequest(query string) []byte {
	return []byte("GET /prod/steam/levels?" + query + " HTTP/1.1\r\nHost: dojo.nplusplus.ninja\r\n\r\n")
}

func header(mode wire.Mode, typ uint32) []byte {
	return wire.QueryHeader{
		IssuedAt:     "2024-03-09-10:00",
		Type:         typ,
		Category:     7,
		Mode:         mode,
		CacheSeconds: 5,
		MaxPageSize:  500,
	}.Encode()
}

func splitResponse(t *testing.T, res []byte) (string, []byte) {
	t.Helper()
	head, body, ok := bytes.Cut(res, []byte("\r\n\r\n"))
	if !ok {
		t.Fatalf("response has no header terminator: %q", res)
	}
	return string(head), body
}

func TestEngine_Classify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ProxyConfig)
		line   string
		want   Route
	}{
		{"levels GET", nil, "GET /prod/steam/levels?mode=0 HTTP/1.1", RouteIntercept},
		{"levels POST", nil, "POST /prod/steam/levels HTTP/1.1", RouteForward},
		{"other endpoint", nil, "GET /prod/steam/get_scores?level_id=1 HTTP/1.1", RouteForward},
		{"all tabs off", nil, "GET /prod/steam/query_levels?qt=10 HTTP/1.1", RouteForward},
		{"all tabs on", func(c *config.ProxyConfig) { c.InterceptAllTabs = true }, "GET /prod/steam/query_levels?qt=10 HTTP/1.1", RouteIntercept},
		{"intercept off", func(c *config.ProxyConfig) { c.Intercept = false }, "GET /prod/steam/levels HTTP/1.1", RouteForward},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testProxyConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			e := NewEngine(cfg, nil, nil)
			req, err := ParseRequest([]byte(tt.line + "\r\n\r\n"))
			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if got := e.Classify(req); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_InterceptRewritesValidReply(t *testing.T) {
	reply := header(wire.ModeSolo, wire.TypeLevelList)
	h := newHarness(t, testProxyConfig(), reply)
	h.search(t)

	res, err := h.engine.Handle(context.Background(), levelsRequest("mode=0&page=3&qt=11"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Route != RouteIntercept || res.Outcome != OutcomeOK {
		t.Errorf("route/outcome = %v/%v", res.Route, res.Outcome)
	}

	head, body := splitResponse(t, res.Response)
	for _, want := range []string{"HTTP/1.1 200 OK", "content-type: application/octet-stream", "content-length: 48", "connection: keep-alive"} {
		if !strings.Contains(head, want) {
			t.Errorf("response head missing %q:\n%s", want, head)
		}
	}

	if len(body) != wire.HeaderSize {
		t.Fatalf("body length = %d, want %d", len(body), wire.HeaderSize)
	}
	for i := range body {
		inPage := i >= 20 && i < 24
		inCategory := i >= 28 && i < 32
		if !inPage && !inCategory && body[i] != reply[i] {
			t.Errorf("byte %d changed: %#x -> %#x", i, reply[i], body[i])
		}
	}
	got, _ := wire.DecodeHeader(body)
	if got.Page != 3 || got.Category != 11 {
		t.Errorf("page/category = %d/%d, want 3/11", got.Page, got.Category)
	}
	if len(h.forwarder.calls) != 0 {
		t.Error("intercepted request was forwarded")
	}
}

func TestEngine_InterceptSearchCategory(t *testing.T) {
	h := newHarness(t, testProxyConfig(), header(wire.ModeCoop, wire.TypeLevelList))
	h.search(t)

	res, err := h.engine.Handle(context.Background(), levelsRequest("mode=1&qt=11&search=foo"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	_, body := splitResponse(t, res.Response)
	got, _ := wire.DecodeHeader(body)
	if got.Category != wire.CategorySearch {
		t.Errorf("category = %d, want %d", got.Category, wire.CategorySearch)
	}
}

func TestEngine_InterceptRejectsUnfitReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   []byte
		query   string
		outcome string
	}{
		{"wrong type", header(wire.ModeSolo, 1), "mode=0&qt=10", "type"},
		{"wrong mode", header(wire.ModeRace, wire.TypeLevelList), "mode=0&qt=10", "mode"},
		{"too short", []byte("2024-03-09-10:00"), "mode=0&qt=10", "length"},
		{"no search yet", nil, "mode=2", "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testProxyConfig(), tt.reply)
			if tt.reply != nil {
				h.search(t)
			}

			res, err := h.engine.Handle(context.Background(), levelsRequest(tt.query))
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if res.Outcome != tt.outcome {
				t.Errorf("outcome = %q, want %q", res.Outcome, tt.outcome)
			}

			params := ParseParams(mustQuery(t, tt.query))
			want := wire.EncodeEmptyQuery(params.Category, params.Mode, testNow)
			_, body := splitResponse(t, res.Response)
			if !bytes.Equal(body, want) {
				t.Errorf("body = %x, want empty query %x", body, want)
			}
		})
	}
}

func TestEngine_PagingQueriesBackend(t *testing.T) {
	cfg := testProxyConfig()
	cfg.Paging = true
	h := newHarness(t, cfg, header(wire.ModeSolo, wire.TypeLevelList))
	h.search(t)
	h.searcher.Session().SetRootPage(4)

	if _, err := h.engine.Handle(context.Background(), levelsRequest("mode=0&page=2")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	// Root search for page 0, then root 4 + offset 2, one-based.
	pages := h.backend.Pages()
	if len(pages) != 2 || pages[1] != 7 {
		t.Errorf("backend pages = %v, want [1 7]", pages)
	}

	if _, err := h.engine.Handle(context.Background(), levelsRequest("mode=0&page=2")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := len(h.backend.Pages()); got != 2 {
		t.Errorf("repeated page hit the backend, calls = %d", got)
	}
}

func TestEngine_PagingBackendFailure(t *testing.T) {
	refused := &backend.DialError{Address: "127.0.0.1:8126", Err: errors.New("connection refused")}
	tests := []struct {
		name        string
		err         error
		wantOutcome string
	}{
		{"unreachable", refused, "unreachable"},
		{"silent", backend.ErrNoReply, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testProxyConfig()
			cfg.Paging = true
			h := newHarness(t, cfg, header(wire.ModeSolo, wire.TypeLevelList))
			h.search(t)
			// Offset 3 is the fourth one-based page.
			h.backend.fail = map[int]error{4: tt.err}

			res, err := h.engine.Handle(context.Background(), levelsRequest("mode=0&page=3&qt=10"))
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", res.Outcome, tt.wantOutcome)
			}
			_, body := splitResponse(t, res.Response)
			want := wire.EncodeEmptyQuery(10, wire.ModeSolo, testNow)
			if !bytes.Equal(body, want) {
				t.Errorf("body = %x, want empty query %x", body, want)
			}
			if h.searcher.Session().LastReply() != nil {
				t.Error("session kept the previous page's reply")
			}
		})
	}
}

func TestEngine_ForwardsOtherRequests(t *testing.T) {
	h := newHarness(t, testProxyConfig(), header(wire.ModeSolo, wire.TypeLevelList))
	raw := []byte("GET /prod/steam/get_scores?level_id=5 HTTP/1.1\r\nHost: x\r\n\r\n")

	res, err := h.engine.Handle(context.Background(), raw)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Route != RouteForward {
		t.Errorf("route = %v, want forward", res.Route)
	}
	if !bytes.Equal(res.Response, h.forwarder.reply) {
		t.Errorf("response = %q, want upstream bytes unchanged", res.Response)
	}
	if len(h.forwarder.calls) != 1 || !bytes.Equal(h.forwarder.calls[0], raw) {
		t.Errorf("forwarded %q, want the raw request", h.forwarder.calls)
	}
	if len(h.backend.Pages()) != 0 {
		t.Error("forwarded request reached the backend")
	}
}

func TestEngine_ForwardErrorAndMalformed(t *testing.T) {
	h := newHarness(t, testProxyConfig(), nil)
	h.forwarder.reply = nil
	h.forwarder.err = errors.New("upstream down")

	res, err := h.engine.Handle(context.Background(), []byte("POST /prod/steam/submit HTTP/1.1\r\n\r\n"))
	if err == nil {
		t.Fatal("Handle() did not report the forward error")
	}
	if res == nil || res.Outcome != OutcomeError {
		t.Errorf("result = %+v, want error outcome", res)
	}

	if _, err := h.engine.Handle(context.Background(), []byte("\x16\x03\x01garbage")); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("Handle(garbage) error = %v, want ErrMalformedRequest", err)
	}

	want := []requestRecord{
		{"forward", "error", 0},
		{"forward", "error", 0},
	}
	if len(h.recorder.records) != len(want) {
		t.Fatalf("records = %v, want %v", h.recorder.records, want)
	}
	for i := range want {
		if h.recorder.records[i] != want[i] {
			t.Errorf("record %d = %v, want %v", i, h.recorder.records[i], want[i])
		}
	}
}
