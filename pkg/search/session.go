package search

import (
	"slices"
	"sync"
)

// Session is the proxy's view of what the player is browsing: the active
// filter set, the page shown at the top of the in-game list, the page last
// fetched, and the last backend reply. It is shared by the searcher and the
// interception engine.
//
// The last reply is an owned copy: cache eviction never affects it.
type Session struct {
	mu       sync.RWMutex
	active   FilterSet
	rootPage int
	page     int
	lastKey  string
	last     []byte
	served   int
}

// SessionSnapshot is a point-in-time copy of a Session.
type SessionSnapshot struct {
	Active     FilterSet `json:"active"`
	RootPage   int       `json:"root_page"`
	Page       int       `json:"page"`
	LastKey    string    `json:"last_key"`
	LastBytes  int       `json:"last_bytes"`
	Served     int       `json:"served"`
	HaveResult bool      `json:"have_result"`
}

// NewSession returns a session whose active set has every filter disabled.
func NewSession() *Session {
	return &Session{active: NewFilterSet("Empty")}
}

// Active returns a copy of the active filter set.
func (s *Session) Active() FilterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Clone()
}

// SetActive replaces the active filter set.
func (s *Session) SetActive(set FilterSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = set.Clone()
}

// RootPage returns the page shown at the top of the in-game list.
func (s *Session) RootPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootPage
}

// SetRootPage moves the top of the in-game list. Negative pages become 0.
func (s *Session) SetRootPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootPage = max(page, 0)
}

// Page returns the absolute page last fetched.
func (s *Session) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// LastReply returns a copy of the last backend reply, or nil before the
// first search.
func (s *Session) LastReply() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.last)
}

// Remember stores a copy of raw as the last reply for key at page.
func (s *Session) Remember(key string, page int, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = key
	s.page = page
	s.last = slices.Clone(raw)
}

// Served counts one more request answered and returns the new total.
func (s *Session) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.served++
	return s.served
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionSnapshot{
		Active:     s.active.Clone(),
		RootPage:   s.rootPage,
		Page:       s.page,
		LastKey:    s.lastKey,
		LastBytes:  len(s.last),
		Served:     s.served,
		HaveResult: s.last != nil,
	}
}
