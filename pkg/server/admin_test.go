package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edelkas/cuse/pkg/backend"
	"github.com/edelkas/cuse/pkg/cache"
	"github.com/edelkas/cuse/pkg/capture"
	"github.com/edelkas/cuse/pkg/config"
	"github.com/edelkas/cuse/pkg/search"
	"github.com/edelkas/cuse/pkg/telemetry/health"
	"github.com/edelkas/cuse/pkg/wire"

	"github.com/gorilla/websocket"
)

type replyQuerier struct {
	reply []byte
	err   error
}

func (q replyQuerier) Query(context.Context, int, string) ([]byte, error) {
	return q.reply, q.err
}

func soloReply() []byte {
	return wire.QueryHeader{IssuedAt: "2024-03-09-10:00", Mode: wire.ModeSolo}.Encode()
}

func newTestAdmin(t *testing.T, q search.Querier) (*Admin, *Hub) {
	t.Helper()
	c := cache.New(cache.Options{Capacity: 8})
	hub := NewHub(nil, nil)
	s := search.NewSearcher(q, c, nil, search.WithListener(hub.PublishCollection))

	store := capture.NewMemoryStore(10)
	_ = store.Record(context.Background(), &capture.Exchange{ID: "a", Route: capture.RouteForward})
	_ = store.Record(context.Background(), &capture.Exchange{ID: "b", Route: capture.RouteIntercept})

	a := NewAdmin(config.AdminConfig{ListenAddress: "127.0.0.1:0"}, AdminDeps{
		Searcher: s,
		Cache:    c,
		Version:  health.VersionInfo{Version: "1.2.3"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("cuse_proxy_requests_total 0\n"))
		}),
		Captures: store,
		Hub:      hub,
	})
	return a, hub
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAdmin_Search(t *testing.T) {
	a, _ := newTestAdmin(t, replyQuerier{reply: soloReply()})
	h := a.Handler()

	body := `{"name":"mine","filters":[{"name":"Title","value":"Basics","enabled":true}]}`
	w := do(t, h, http.MethodPost, "/api/search", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var res SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Cached || res.Collection == nil || res.Key != `[["Title","basics"]]` {
		t.Errorf("first search = %+v", res)
	}

	w = do(t, h, http.MethodPost, "/api/search", body)
	json.NewDecoder(w.Body).Decode(&res)
	if !res.Cached {
		t.Error("repeated search was not served from the cache")
	}

	w = do(t, h, http.MethodGet, "/api/session", "")
	var snap search.SessionSnapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if snap.Active.Name != "mine" || !snap.HaveResult || snap.LastBytes != wire.HeaderSize {
		t.Errorf("session = %+v", snap)
	}

	w = do(t, h, http.MethodGet, "/api/cache", "")
	var cr CacheResponse
	if err := json.NewDecoder(w.Body).Decode(&cr); err != nil {
		t.Fatalf("decode cache: %v", err)
	}
	if cr.Len != 1 || cr.Capacity != 8 || len(cr.Entries) != 1 {
		t.Errorf("cache = %+v", cr)
	}
}

func TestAdmin_SearchErrors(t *testing.T) {
	tests := []struct {
		name string
		q    search.Querier
		body string
		want int
	}{
		{"bad json", replyQuerier{}, "{", http.StatusBadRequest},
		{"backend down", replyQuerier{err: &backend.DialError{Address: "x", Err: errors.New("refused")}}, `{}`, http.StatusBadGateway},
		{"no reply", replyQuerier{err: backend.ErrNoReply}, `{}`, http.StatusBadGateway},
		{"invalid reply", replyQuerier{reply: []byte("short")}, `{}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAdmin(t, tt.q)
			w := do(t, a.Handler(), http.MethodPost, "/api/search", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestAdmin_Routes(t *testing.T) {
	a, _ := newTestAdmin(t, replyQuerier{reply: soloReply()})
	h := a.Handler()

	tests := []struct {
		method, path string
		want         int
		contains     string
	}{
		{http.MethodGet, "/health", http.StatusOK, "ok"},
		{http.MethodGet, "/ready", http.StatusOK, "ready"},
		{http.MethodGet, "/version", http.StatusOK, "1.2.3"},
		{http.MethodGet, "/metrics", http.StatusOK, "requests_total"},
		{http.MethodGet, "/api/captures?route=intercept", http.StatusOK, `"id":"b"`},
		{http.MethodGet, "/api/captures?limit=x", http.StatusBadRequest, "invalid limit"},
		{http.MethodGet, "/api/search", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %q does not contain %q", w.Body, tt.contains)
			}
		})
	}
}

func TestAdmin_StreamsCollections(t *testing.T) {
	a, hub := newTestAdmin(t, replyQuerier{reply: soloReply()})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/collections"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for hub.Len() < 1 {
		select {
		case <-ctx.Done():
			t.Fatal("viewer never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	resp, err := http.Post(srv.URL+"/api/search", "application/json",
		bytes.NewBufferString(`{"filters":[{"name":"Author","value":"eddy","enabled":true}]}`))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string               `json:"type"`
		Data wire.LevelCollection `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MessageCollection || msg.Data.Key != `[["Author","eddy"]]` {
		t.Errorf("message = %+v", msg)
	}
}

func TestAdmin_StartAndShutdown(t *testing.T) {
	a, _ := newTestAdmin(t, replyQuerier{})
	addr, err := a.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
