package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/edelkas/cuse/pkg/backend"
	"github.com/edelkas/cuse/pkg/cache"
	"github.com/edelkas/cuse/pkg/capture"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/proxy"
	"github.com/edelkas/cuse/pkg/search"
	"github.com/edelkas/cuse/pkg/wire"
)

// tcpBackend answers every query with reply, like the search backend does.
type tcpBackend struct {
	ln    net.Listener
	reply []byte

	mu      sync.Mutex
	queries []string
}

func newTCPBackend(t *testing.T, reply []byte) *tcpBackend {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := &tcpBackend{ln: ln, reply: reply}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			q, _ := io.ReadAll(conn)
			b.mu.Lock()
			b.queries = append(b.queries, string(q))
			b.mu.Unlock()
			conn.Write(b.reply)
			conn.Close()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return b
}

func (b *tcpBackend) Queries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries...)
}

type staticForwarder struct{ reply []byte }

func (f staticForwarder) Forward(context.Context, []byte) ([]byte, error) {
	return f.reply, nil
}

type stack struct {
	server   *Server
	searcher *search.Searcher
	backend  *tcpBackend
	store    *capture.MemoryStore
}

func testServerConfig() config.ProxyConfig {
	return config.ProxyConfig{
		ListenAddress:  "127.0.0.1:0",
		ClientTimeout:  100 * time.Millisecond,
		WriteTimeout:   time.Second,
		Intercept:      true,
		LevelsEndpoint: "levels",
	}
}

func newStack(t *testing.T, reply []byte) *stack {
	t.Helper()
	st := &stack{backend: newTCPBackend(t, reply), store: capture.NewMemoryStore(10)}

	client := backend.New(config.BackendConfig{
		Address:     st.backend.ln.Addr().String(),
		DialTimeout: time.Second,
		Timeout:     200 * time.Millisecond,
	})
	st.searcher = search.NewSearcher(client, cache.New(cache.Options{}), nil)
	engine := proxy.NewEngine(testServerConfig(), st.searcher, staticForwarder{reply: []byte("HTTP/1.1 204 No Content\r\n\r\n")})

	rec, err := capture.NewRecorder(st.store, capture.ModeAll, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	st.server = New(testServerConfig(), engine, WithCapture(rec))
	startServer(t, st.server)
	return st
}

func startServer(t *testing.T, s *Server) {
	t.Helper()
	if _, err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve() did not return after cancel")
		}
	})
}

func roundTrip(t *testing.T, addr net.Addr, req string) []byte {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	res, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return res
}

func TestServer_InterceptsOverTCP(t *testing.T) {
	reply := wire.QueryHeader{IssuedAt: "2024-03-09-10:00", Mode: wire.ModeSolo, Category: 7}.Encode()
	st := newStack(t, reply)

	set := search.NewFilterSet("t")
	set.Set(search.FilterTitle, "basics", true)
	if _, err := st.searcher.Execute(context.Background(), set); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if q := st.backend.Queries(); len(q) != 1 || q[0] != `page 1 title "basics"` {
		t.Errorf("backend queries = %q", q)
	}

	res := roundTrip(t, st.server.Addr(), "GET /prod/steam/levels?mode=0&page=2&qt=11 HTTP/1.1\r\nHost: x\r\n\r\n")
	_, body, ok := bytes.Cut(res, []byte("\r\n\r\n"))
	if !ok {
		t.Fatalf("malformed response %q", res)
	}
	if want := wire.RewriteForPage(reply, 2, 11); !bytes.Equal(body, want) {
		t.Errorf("body = %x, want %x", body, want)
	}

	// Answered from the session, not the backend.
	if got := len(st.backend.Queries()); got != 1 {
		t.Errorf("backend queries = %d, want 1", got)
	}

	exchanges, _ := st.store.List(context.Background(), capture.ListOptions{})
	if len(exchanges) != 1 || exchanges[0].Route != capture.RouteIntercept || !bytes.Equal(exchanges[0].Response, res) {
		t.Errorf("captured = %+v", exchanges)
	}
}

func TestServer_ForwardsOverTCP(t *testing.T) {
	st := newStack(t, nil)
	res := roundTrip(t, st.server.Addr(), "GET /prod/steam/get_scores HTTP/1.1\r\n\r\n")
	if string(res) != "HTTP/1.1 204 No Content\r\n\r\n" {
		t.Errorf("response = %q", res)
	}
	if len(st.backend.Queries()) != 0 {
		t.Error("forwarded request reached the backend")
	}
}

type panicHandler struct{ calls int }

func (h *panicHandler) Handle(_ context.Context, raw []byte) (*proxy.Result, error) {
	h.calls++
	if h.calls == 1 {
		panic("boom")
	}
	if bytes.HasPrefix(raw, []byte("BAD")) {
		return nil, errors.New("refused")
	}
	return &proxy.Result{Route: proxy.RouteForward, Response: []byte("ok")}, nil
}

func TestServer_SurvivesFailingConnections(t *testing.T) {
	h := &panicHandler{}
	s := New(testServerConfig(), h)
	startServer(t, s)

	if res := roundTrip(t, s.Addr(), "GET / HTTP/1.1\r\n\r\n"); len(res) != 0 {
		t.Errorf("panicking handler produced %q", res)
	}
	if res := roundTrip(t, s.Addr(), "BAD / HTTP/1.1\r\n\r\n"); len(res) != 0 {
		t.Errorf("failing handler produced %q", res)
	}
	if res := roundTrip(t, s.Addr(), "GET / HTTP/1.1\r\n\r\n"); string(res) != "ok" {
		t.Errorf("response after failures = %q, want ok", res)
	}
	if s.Served() != 3 {
		t.Errorf("Served() = %d, want 3", s.Served())
	}
}

func TestServer_ListenRetriesAndSkipsBackendPort(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port
	if port >= 65533 {
		t.Skip("ephemeral port too close to the top of the range")
	}

	cfg := testServerConfig()
	cfg.ListenAddress = net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	s := New(cfg, &panicHandler{}, WithSkipPort(port+1))

	addr, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer s.Close()

	got := addr.(*net.TCPAddr).Port
	if got == port || got == port+1 {
		t.Errorf("bound port %d, want one past %d and %d", got, port, port+1)
	}
}

func TestServer_ListenInvalidAddress(t *testing.T) {
	cfg := testServerConfig()
	cfg.ListenAddress = "no-port"
	if _, err := New(cfg, &panicHandler{}).Listen(); err == nil {
		t.Error("Listen() accepted an address without a port")
	}
}
