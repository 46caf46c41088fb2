package capture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/edelkas/cuse/pkg/config"
)

func storesUnderTest(t *testing.T, max int) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "captures.db"), max)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(max),
		"sqlite": sq,
	}
}

func TestStore_RecordAndList(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t, 3) {
		t.Run(name, func(t *testing.T) {
			routes := []string{RouteIntercept, RouteForward, RouteIntercept, RouteForward, RouteIntercept}
			for i, route := range routes {
				e := &Exchange{
					ID:       string(rune('a' + i)),
					Time:     time.Unix(int64(1000+i), 0),
					Route:    route,
					Method:   "GET",
					Path:     "/prod/steam/query_levels",
					Request:  []byte("GET / HTTP/1.1\r\n\r\n"),
					Duration: time.Millisecond,
				}
				if err := store.Record(ctx, e); err != nil {
					t.Fatalf("Record: %v", err)
				}
				if e.Seq == 0 {
					t.Error("Record did not assign a sequence number")
				}
			}

			n, err := store.Count(ctx)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != 3 {
				t.Errorf("Count = %d, want 3 after pruning", n)
			}

			all, err := store.List(ctx, ListOptions{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, e := range all {
				ids = append(ids, e.ID)
			}
			if got, want := len(ids), 3; got != want {
				t.Fatalf("List returned %d, want %d", got, want)
			}
			if ids[0] != "e" || ids[2] != "c" {
				t.Errorf("List order = %v, want newest first [e d c]", ids)
			}

			fwd, err := store.List(ctx, ListOptions{Route: RouteForward})
			if err != nil {
				t.Fatalf("List(forward): %v", err)
			}
			if len(fwd) != 1 || fwd[0].ID != "d" {
				t.Errorf("forward exchanges = %v, want [d]", fwd)
			}

			limited, err := store.List(ctx, ListOptions{Limit: 1})
			if err != nil {
				t.Fatalf("List(limit): %v", err)
			}
			if len(limited) != 1 || limited[0].ID != "e" {
				t.Errorf("limited list = %v, want [e]", limited)
			}
			if string(limited[0].Request) != "GET / HTTP/1.1\r\n\r\n" {
				t.Errorf("request bytes = %q", limited[0].Request)
			}
			if limited[0].Duration != time.Millisecond {
				t.Errorf("duration = %v", limited[0].Duration)
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t, 0) {
		t.Run(name, func(t *testing.T) {
			if err := store.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("second Close: %v", err)
			}
			if err := store.Record(ctx, &Exchange{ID: "x"}); !errors.Is(err, ErrClosed) {
				t.Errorf("Record after close = %v, want ErrClosed", err)
			}
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "captures.db")

	s, err := NewSQLiteStore(path, 0)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Record(ctx, &Exchange{ID: "kept", Route: RouteForward, Method: "POST", Path: "/x", Error: "boom"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "kept" || got[0].Error != "boom" {
		t.Errorf("reopened store = %+v", got)
	}
}

func TestRecorder_Modes(t *testing.T) {
	tests := []struct {
		mode        string
		wantRequest bool
		wantReply   bool
	}{
		{ModeAll, true, true},
		{ModeRequests, true, false},
		{ModeResponses, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			store := NewMemoryStore(0)
			r, err := NewRecorder(store, tt.mode, nil)
			if err != nil {
				t.Fatalf("NewRecorder: %v", err)
			}
			r.Capture(context.Background(), RouteIntercept, "GET", "/levels", []byte("req"), []byte("res"), time.Millisecond, errors.New("bad"))

			got, _ := store.List(context.Background(), ListOptions{})
			if len(got) != 1 {
				t.Fatalf("stored %d exchanges, want 1", len(got))
			}
			e := got[0]
			if (e.Request != nil) != tt.wantRequest {
				t.Errorf("request kept = %v, want %v", e.Request != nil, tt.wantRequest)
			}
			if (e.Response != nil) != tt.wantReply {
				t.Errorf("response kept = %v, want %v", e.Response != nil, tt.wantReply)
			}
			if e.ID == "" || e.Error != "bad" {
				t.Errorf("exchange = %+v", e)
			}
		})
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.Capture(context.Background(), RouteForward, "GET", "/", nil, nil, 0, nil)
	if r.Store() != nil {
		t.Error("nil recorder has a store")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestOpen(t *testing.T) {
	r, err := Open(config.CaptureConfig{Enabled: false}, nil)
	if err != nil || r != nil {
		t.Errorf("disabled Open = %v, %v; want nil, nil", r, err)
	}

	r, err = Open(config.CaptureConfig{Enabled: true, Mode: ModeAll, Backend: "memory", MaxEntries: 5}, nil)
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := r.Store().(*MemoryStore); !ok {
		t.Errorf("store = %T, want *MemoryStore", r.Store())
	}
	r.Close()

	if _, err := Open(config.CaptureConfig{Enabled: true, Mode: "everything"}, nil); err == nil {
		t.Error("Open accepted an unknown mode")
	}
	if _, err := Open(config.CaptureConfig{Enabled: true, Mode: ModeAll, Backend: "redis"}, nil); err == nil {
		t.Error("Open accepted an unknown backend")
	}
}
