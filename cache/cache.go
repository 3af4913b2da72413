// Package cache implements the byte-bounded LRU the Sixel and iTerm
// encoders keep,
// keyed by image fingerprint and holding the fully encoded byte string
// for that image (spec section on the Sixel/iTerm cache). Built on
// hashicorp/golang-lru's simplelru so eviction order and recency
// bookkeeping reuse a library already proven for this job, rather than
// a hand-rolled doubly-linked list.
package cache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultBudget is IMAGE_CACHE_BYTES, the default upper bound on a
// single encoder's cache.
const DefaultBudget = 128 * 1024 * 1024

// unboundedEntries is the entry-count ceiling passed to the underlying
// simplelru.LRU. The cache is bounded by bytes, not count, so this only
// needs to be larger than any realistic number of distinct images held
// at once.
const unboundedEntries = 1 << 20

// Bytes is a byte-accounted LRU cache from a 64-bit fingerprint to an
// encoded payload. It maintains the invariant size == sum of len(v) for
// every entry currently held (testable property 12).
type Bytes struct {
	mu     sync.Mutex
	lru    *simplelru.LRU[uint64, []byte]
	budget int
	size   int
}

// New builds a Bytes cache bounded by budget bytes. A non-positive
// budget falls back to DefaultBudget.
func New(budget int) *Bytes {
	if budget <= 0 {
		budget = DefaultBudget
	}
	c := &Bytes{budget: budget}
	// The onEvict callback only fires from within lru.Add, lru.Remove and
	// lru.RemoveOldest, all of which c already holds mu for, so updating
	// size here never races.
	l, err := simplelru.NewLRU[uint64, []byte](unboundedEntries, func(_ uint64, v []byte) {
		c.size -= len(v)
	})
	if err != nil {
		// unboundedEntries is a positive compile-time constant; NewLRU
		// only errors on size <= 0.
		panic(err)
	}
	c.lru = l
	return c
}

// Get returns the cached payload for fingerprint, if present, marking
// it most-recently-used.
func (c *Bytes) Get(fingerprint uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(fingerprint)
}

// Put inserts or replaces the payload for fingerprint, then evicts
// least-recently-used entries until the cache is back under budget or
// only the newly put entry remains, so a single entry larger than the
// budget is kept (spec: "when it exceeds IMAGE_CACHE_BYTES, the least-recently-used
// entry is evicted").
func (c *Bytes) Put(fingerprint uint64, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(fingerprint); ok {
		c.size -= len(old)
	}
	c.lru.Add(fingerprint, payload)
	c.size += len(payload)

	for c.size > c.budget && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

// Remove drops the entry for fingerprint, if any. Used when a protocol
// rejection forces the offending cache entry to be dropped (spec:
// "ProtocolRejected is absorbed internally — the offending cache entry
// is dropped").
func (c *Bytes) Remove(fingerprint uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(fingerprint)
}

// Size returns the current total of all cached payload lengths.
func (c *Bytes) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of entries currently cached.
func (c *Bytes) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
