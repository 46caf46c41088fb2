package capture

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the most recent exchanges in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Exchange
	max     int
	seq     int64
	closed  bool
}

// NewMemoryStore creates a store holding at most maxEntries exchanges.
// Zero or less means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{max: maxEntries}
}

// Record stores e, dropping the oldest exchange when full.
func (m *MemoryStore) Record(_ context.Context, e *Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.seq++
	e.Seq = m.seq
	m.entries = append(m.entries, e)
	if m.max > 0 && len(m.entries) > m.max {
		drop := len(m.entries) - m.max
		clear(m.entries[:drop])
		m.entries = m.entries[drop:]
	}
	return nil
}

// List returns stored exchanges, newest first.
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	var out []*Exchange
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if opts.Route != "" && e.Route != opts.Route {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of stored exchanges.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.entries), nil
}

// DeleteBefore removes exchanges recorded before cutoff.
func (m *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	kept := m.entries[:0]
	for _, e := range m.entries {
		if !e.Time.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	n := len(m.entries) - len(kept)
	clear(m.entries[len(kept):])
	m.entries = kept
	return n, nil
}

// Close drops every exchange.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}
