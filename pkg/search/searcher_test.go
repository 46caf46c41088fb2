package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edelkas/cuse/pkg/cache"
	"github.com/edelkas/cuse/pkg/wire"
)

type call struct {
	page  int
	query string
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []call
	reply func(page int) []byte
	err   error
}

func (f *fakeBackend) Query(_ context.Context, page int, q string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{page, q})
	if f.err != nil {
		return nil, f.err
	}
	return f.reply(page), nil
}

func (f *fakeBackend) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func emptyReply(page int) []byte {
	return wire.QueryHeader{
		IssuedAt: "2024-03-10-15:00",
		Page:     uint32(page),
		Category: wire.CategorySearch,
		Mode:     wire.ModeSolo,
	}.Encode()
}

func newTestSearcher(b Querier, opts ...Option) *Searcher {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewSearcher(b, cache.New(cache.Options{}), nil, opts...)
}

func titleSearch(v string) FilterSet {
	set := NewFilterSet("t")
	set.Set(FilterTitle, v, true)
	return set
}

func TestSearcher_ExecuteCaches(t *testing.T) {
	backend := &fakeBackend{reply: emptyReply}
	s := newTestSearcher(backend)

	first, err := s.Execute(context.Background(), titleSearch("Basics"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if first.Cached || first.Collection == nil {
		t.Fatalf("first result = %+v", first)
	}

	second, err := s.Execute(context.Background(), titleSearch("BASICS"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !second.Cached {
		t.Error("equivalent search was not served from the cache")
	}

	calls := backend.Calls()
	if len(calls) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(calls))
	}
	if calls[0] != (call{1, `title "basics"`}) {
		t.Errorf("backend call = %+v", calls[0])
	}
	if first.Collection.Key != first.Key {
		t.Errorf("collection key %q, result key %q", first.Collection.Key, first.Key)
	}
}

func TestSearcher_FetchPage(t *testing.T) {
	backend := &fakeBackend{reply: emptyReply}
	s := newTestSearcher(backend)
	s.Session().SetRootPage(2)

	if _, err := s.Execute(context.Background(), titleSearch("x")); err != nil {
		t.Fatal(err)
	}
	res, err := s.FetchPage(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Page != 5 {
		t.Errorf("page = %d, want 5", res.Page)
	}
	if _, err := s.FetchPage(context.Background(), 3); err != nil {
		t.Fatal(err)
	}

	calls := backend.Calls()
	want := []call{{3, `title "x"`}, {6, `title "x"`}}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
	if got := s.Session().Page(); got != 5 {
		t.Errorf("session page = %d, want 5", got)
	}
}

func TestSearcher_InvalidReplyNotCached(t *testing.T) {
	backend := &fakeBackend{reply: func(int) []byte { return []byte("short") }}
	var reasons []string
	s := newTestSearcher(backend, WithDecodeRecorder(recorderFunc(func(r string, _ int) {
		reasons = append(reasons, r)
	})))

	for range 2 {
		_, err := s.Execute(context.Background(), titleSearch("x"))
		if !errors.Is(err, wire.ErrTooShort) {
			t.Fatalf("Execute() error = %v, want ErrTooShort", err)
		}
	}
	if n := len(backend.Calls()); n != 2 {
		t.Errorf("backend calls = %d, want 2", n)
	}
	if got := string(s.Session().LastReply()); got != "short" {
		t.Errorf("last reply = %q, want the raw reply", got)
	}
	if len(reasons) != 2 || reasons[0] != "length" {
		t.Errorf("recorded reasons = %v", reasons)
	}
}

func TestSearcher_BackendError(t *testing.T) {
	backendErr := errors.New("connection refused")
	s := newTestSearcher(&fakeBackend{err: backendErr})

	_, err := s.Execute(context.Background(), titleSearch("x"))
	if !errors.Is(err, backendErr) || !errors.Is(err, ErrBackend) {
		t.Fatalf("Execute() error = %v", err)
	}
	if s.Session().LastReply() != nil {
		t.Error("failed query left a last reply")
	}
}

func TestSearcher_FailedPageClearsLastReply(t *testing.T) {
	fb := &fakeBackend{reply: emptyReply}
	s := newTestSearcher(fb)

	if _, err := s.Execute(context.Background(), titleSearch("x")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if s.Session().LastReply() == nil {
		t.Fatal("successful search left no last reply")
	}

	fb.mu.Lock()
	fb.err = errors.New("i/o timeout")
	fb.mu.Unlock()

	_, err := s.FetchPage(context.Background(), 2)
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("FetchPage() error = %v, want ErrBackend", err)
	}
	if got := s.Session().LastReply(); got != nil {
		t.Errorf("LastReply() = %x after a failed page, want nil", got)
	}
	if got := s.Session().Page(); got != 2 {
		t.Errorf("Page() = %d, want 2", got)
	}
}

func TestSearcher_Listener(t *testing.T) {
	var got []*wire.LevelCollection
	s := newTestSearcher(&fakeBackend{reply: emptyReply}, WithListener(func(c *wire.LevelCollection) {
		got = append(got, c)
	}))

	s.Execute(context.Background(), titleSearch("a"))
	s.Execute(context.Background(), titleSearch("a"))
	s.Execute(context.Background(), titleSearch("b"))

	if len(got) != 2 {
		t.Errorf("listener calls = %d, want 2 (cache hits are not announced)", len(got))
	}
}

func TestSearcher_Warnings(t *testing.T) {
	s := newTestSearcher(&fakeBackend{reply: emptyReply})
	set := titleSearch("x")
	set.Set(FilterAuthor, "a", true)
	set.Set(FilterAuthorID, "1", true)

	res, err := s.Execute(context.Background(), set)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if f, _ := s.Session().Active().Get(FilterAuthorID); f.Enabled {
		t.Error("session holds the unnormalized set")
	}
}

type recorderFunc func(reason string, levels int)

func (f recorderFunc) RecordDecode(reason string, levels int) { f(reason, levels) }
