package cache

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/spaolacci/murmur3"

	"github.com/edelkas/cuse/pkg/wire"
)

// Defaults used when Options leaves a field unset.
const (
	DefaultCapacity      = 1024
	DefaultTTL           = 2 * time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Eviction reasons reported to the Recorder.
const (
	ReasonCapacity = "capacity"
	ReasonExpired  = "expired"
	ReasonCleared  = "cleared"
)

// Recorder receives cache events. The metrics collector implements it.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEviction(reason string, n int)
	UpdateCacheSize(n int)
}

// Options configures a Cache.
type Options struct {
	// Capacity is the maximum number of slots.
	Capacity int

	// TTL is how long a slot may go untouched before Expire removes it.
	TTL time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Recorder is optional.
	Recorder Recorder
}

type digest struct {
	hi, lo uint64
}

func digestOf(key string) digest {
	hi, lo := murmur3.Sum128([]byte(key))
	return digest{hi: hi, lo: lo}
}

type slot struct {
	key        string
	digest     digest
	collection *wire.LevelCollection
	lastAccess time.Time
	index      uint64
}

// lessSlot orders slots oldest first. The insertion index breaks ties, so
// no two slots ever compare equal.
func lessSlot(a, b *slot) bool {
	if !a.lastAccess.Equal(b.lastAccess) {
		return a.lastAccess.Before(b.lastAccess)
	}
	return a.index < b.index
}

// Cache maps filter keys to decoded collections with TTL expiry and
// least-recently-used eviction.
//
// Every operation runs under a single mutex, so a reader never observes a
// slot in the middle of being evicted. Collections are immutable; dropping a
// slot only drops the cache's reference to it.
type Cache struct {
	mu       sync.Mutex
	slots    map[digest]*slot
	order    *btree.BTreeG[*slot]
	capacity int
	ttl      time.Duration
	now      func() time.Time
	next     uint64
	recorder Recorder
}

// New creates an empty cache.
func New(opts Options) *Cache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		slots:    make(map[digest]*slot, opts.Capacity),
		order:    btree.NewG(16, lessSlot),
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		now:      opts.Clock,
		recorder: opts.Recorder,
	}
}

// Get returns the collection stored under key and marks it as used.
func (c *Cache) Get(key string) (*wire.LevelCollection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[digestOf(key)]
	if !ok || s.key != key {
		if c.recorder != nil {
			c.recorder.RecordCacheMiss()
		}
		return nil, false
	}
	c.touch(s)
	if c.recorder != nil {
		c.recorder.RecordCacheHit()
	}
	return s.collection, true
}

// Put stores collection under key. If the key is already present its slot
// is refreshed, the stored collection is kept, and Put returns false.
// Otherwise the oldest slots are evicted until there is room for one more.
func (c *Cache) Put(key string, collection *wire.LevelCollection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := digestOf(key)
	if s, ok := c.slots[d]; ok {
		if s.key == key {
			c.touch(s)
			return false
		}
		c.remove(s)
	}

	evicted := 0
	for len(c.slots) >= c.capacity {
		oldest, ok := c.order.DeleteMin()
		if !ok {
			break
		}
		delete(c.slots, oldest.digest)
		evicted++
	}

	s := &slot{
		key:        key,
		digest:     d,
		collection: collection,
		lastAccess: c.now(),
		index:      c.next,
	}
	c.next++
	c.slots[d] = s
	c.order.ReplaceOrInsert(s)

	if c.recorder != nil {
		if evicted > 0 {
			c.recorder.RecordCacheEviction(ReasonCapacity, evicted)
		}
		c.recorder.UpdateCacheSize(len(c.slots))
	}
	return true
}

// Delete removes key. It reports whether the key was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[digestOf(key)]
	if !ok || s.key != key {
		return false
	}
	c.remove(s)
	if c.recorder != nil {
		c.recorder.UpdateCacheSize(len(c.slots))
	}
	return true
}

// Expire removes every slot that has gone untouched for at least the TTL
// as of now, and returns how many were removed.
func (c *Cache) Expire(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []*slot
	c.order.Ascend(func(s *slot) bool {
		if now.Sub(s.lastAccess) < c.ttl {
			return false
		}
		stale = append(stale, s)
		return true
	})
	for _, s := range stale {
		c.remove(s)
	}

	if c.recorder != nil && len(stale) > 0 {
		c.recorder.RecordCacheEviction(ReasonExpired, len(stale))
		c.recorder.UpdateCacheSize(len(c.slots))
	}
	return len(stale)
}

// Clear drops every slot.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.slots)
	c.slots = make(map[digest]*slot, c.capacity)
	c.order.Clear(false)

	if c.recorder != nil {
		if n > 0 {
			c.recorder.RecordCacheEviction(ReasonCleared, n)
		}
		c.recorder.UpdateCacheSize(0)
	}
}

// Len returns the number of occupied slots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Capacity returns the maximum number of slots.
func (c *Cache) Capacity() int {
	return c.capacity
}

// TTL returns the idle time after which a slot expires.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Entry describes one slot without exposing the collection.
type Entry struct {
	Key        string    `json:"key"`
	Levels     int       `json:"levels"`
	LastAccess time.Time `json:"last_access"`
}

// Entries lists the slots from least to most recently used.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.slots))
	c.order.Ascend(func(s *slot) bool {
		e := Entry{Key: s.key, LastAccess: s.lastAccess}
		if s.collection != nil {
			e.Levels = s.collection.Len()
		}
		out = append(out, e)
		return true
	})
	return out
}

// touch refreshes a slot's access time. The slot must be taken out of the
// order index before its sort key changes.
func (c *Cache) touch(s *slot) {
	c.order.Delete(s)
	s.lastAccess = c.now()
	c.order.ReplaceOrInsert(s)
}

func (c *Cache) remove(s *slot) {
	c.order.Delete(s)
	delete(c.slots, s.digest)
}
