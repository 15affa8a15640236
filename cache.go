package rawgkit

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const defaultCacheShards = 16

// CacheStats is a point-in-time snapshot of cache contents and traffic.
// ValidEntries + ExpiredEntries == TotalEntries; expired entries remain
// counted until CleanExpired sweeps them.
type CacheStats struct {
	TotalEntries   int
	ValidEntries   int
	ExpiredEntries int
	Hits           int64
	Misses         int64
	Evictions      int64
}

// ResponseCache is a bounded, TTL-aware store of raw response payloads keyed
// by RequestKey. It is sharded to keep lock contention low and safe for
// concurrent use. Reads never observe a partially written entry.
//
// Expired entries are reported as misses but stay in their slot until
// CleanExpired runs; capacity pressure evicts the least recently touched
// entry of the affected shard.
type ResponseCache struct {
	shards []*cacheShard

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

type cacheShard struct {
	mu       sync.Mutex
	store    map[string]*cacheEntry
	head     *cacheEntry // most recently used
	tail     *cacheEntry // least recently used
	capacity int
}

type cacheEntry struct {
	key      string
	payload  []byte
	storedAt time.Time
	ttl      time.Duration

	prev, next *cacheEntry
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !now.Before(e.storedAt.Add(e.ttl))
}

// NewResponseCache creates a cache holding at most capacity entries in total.
// Capacity is distributed across shards so the global bound always holds.
func NewResponseCache(capacity int) *ResponseCache {
	if capacity <= 0 {
		capacity = 1
	}

	numShards := defaultCacheShards
	if capacity < numShards {
		numShards = capacity
	}

	shards := make([]*cacheShard, numShards)
	base := capacity / numShards
	extra := capacity % numShards
	for i := range shards {
		size := base
		if i < extra {
			size++
		}
		shards[i] = &cacheShard{
			store:    make(map[string]*cacheEntry),
			capacity: size,
		}
	}

	return &ResponseCache{
		shards: shards,
		now:    time.Now,
	}
}

func (c *ResponseCache) getShard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns a copy of the payload for key if a valid (unexpired) entry
// exists. Callers receive their own slice, so mutating it cannot corrupt the
// stored entry. Expired entries count as misses and are left in place for
// CleanExpired.
func (c *ResponseCache) Get(key RequestKey) ([]byte, bool) {
	shard := c.getShard(key.String())
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, exists := shard.store[key.String()]
	if !exists || entry.expired(c.now()) {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	shard.touch(entry)
	atomic.AddInt64(&c.hits, 1)
	return append([]byte(nil), entry.payload...), true
}

// Set inserts or overwrites the entry for key, storing its own copy of
// payload. At capacity, the shard's least recently used entry is evicted
// first.
func (c *ResponseCache) Set(key RequestKey, payload []byte, ttl time.Duration) {
	shard := c.getShard(key.String())
	shard.mu.Lock()
	defer shard.mu.Unlock()

	stored := append([]byte(nil), payload...)

	if existing, ok := shard.store[key.String()]; ok {
		existing.payload = stored
		existing.storedAt = c.now()
		existing.ttl = ttl
		shard.touch(existing)
		return
	}

	if len(shard.store) >= shard.capacity {
		if evicted := shard.evictLRU(); evicted {
			atomic.AddInt64(&c.evictions, 1)
		}
	}

	entry := &cacheEntry{
		key:      key.String(),
		payload:  stored,
		storedAt: c.now(),
		ttl:      ttl,
	}
	shard.store[key.String()] = entry
	shard.pushFront(entry)
}

// Delete removes the entry for key, if present.
func (c *ResponseCache) Delete(key RequestKey) {
	shard := c.getShard(key.String())
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if entry, ok := shard.store[key.String()]; ok {
		delete(shard.store, entry.key)
		shard.unlink(entry)
	}
}

// CleanExpired sweeps every shard, removing expired entries. Returns the
// number of entries removed.
func (c *ResponseCache) CleanExpired() int {
	removed := 0
	now := c.now()
	for _, shard := range c.shards {
		shard.mu.Lock()
		for _, entry := range shard.store {
			if entry.expired(now) {
				delete(shard.store, entry.key)
				shard.unlink(entry)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Clear removes all entries and resets traffic counters.
func (c *ResponseCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*cacheEntry)
		shard.head = nil
		shard.tail = nil
		shard.mu.Unlock()
	}

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats recomputes entry counts by scanning the shards. Acceptable cost for
// the small bounded capacities this cache is configured with.
func (c *ResponseCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}

	now := c.now()
	for _, shard := range c.shards {
		shard.mu.Lock()
		for _, entry := range shard.store {
			stats.TotalEntries++
			if entry.expired(now) {
				stats.ExpiredEntries++
			} else {
				stats.ValidEntries++
			}
		}
		shard.mu.Unlock()
	}
	return stats
}

// len reports the current total entry count, for metrics.
func (c *ResponseCache) len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		total += len(shard.store)
		shard.mu.Unlock()
	}
	return total
}

// LRU chain management. Callers hold the shard lock.

func (s *cacheShard) pushFront(entry *cacheEntry) {
	entry.prev = nil
	entry.next = s.head
	if s.head != nil {
		s.head.prev = entry
	}
	s.head = entry
	if s.tail == nil {
		s.tail = entry
	}
}

func (s *cacheShard) unlink(entry *cacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		s.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		s.tail = entry.prev
	}
	entry.prev = nil
	entry.next = nil
}

func (s *cacheShard) touch(entry *cacheEntry) {
	if s.head == entry {
		return
	}
	s.unlink(entry)
	s.pushFront(entry)
}

func (s *cacheShard) evictLRU() bool {
	if s.tail == nil {
		return false
	}
	evicted := s.tail
	delete(s.store, evicted.key)
	s.unlink(evicted)
	return true
}
