package barcache

import (
	"sort"
	"sync"

	"BarBridge/internal/domain/models"
)

// Capacity bounds. Configured values outside the clamp range are pulled back
// in rather than rejected.
const (
	DefaultCapacity = 100_000
	MinCapacity     = 1_000
	MaxCapacity     = 1_000_000
)

// Cache is a bounded, time-ordered store of completed bars keyed by close
// time in epoch milliseconds. Inserts come from the delivery context, range
// reads from background contexts; one mutex covers both.
type Cache struct {
	mu       sync.Mutex
	capacity int
	bars     map[int64]models.CachedBar
	keys     []int64 // ascending close times, parallel to bars
}

// New creates an empty cache with the given capacity, clamped to
// [MinCapacity, MaxCapacity]. Zero or negative means DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	return &Cache{
		capacity: capacity,
		bars:     make(map[int64]models.CachedBar),
	}
}

// Insert adds or overwrites the bar keyed by its close time. When the insert
// pushes the cache over capacity, the single oldest key is evicted. Eviction
// is strict FIFO by time, never by access recency.
func (c *Cache) Insert(bar models.CachedBar) {
	key := bar.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.bars[key]; ok {
		c.bars[key] = bar
		return
	}

	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= key })
	c.keys = append(c.keys, 0)
	copy(c.keys[i+1:], c.keys[i:])
	c.keys[i] = key
	c.bars[key] = bar

	if len(c.keys) > c.capacity {
		oldest := c.keys[0]
		c.keys = c.keys[1:]
		delete(c.bars, oldest)
	}
}

// QueryRange returns all bars with start <= closeTime <= end (both epoch
// milliseconds), ascending by close time. An empty result is not an error.
func (c *Cache) QueryRange(startMs, endMs int64) []models.CachedBar {
	c.mu.Lock()
	defer c.mu.Unlock()

	lo := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= startMs })
	hi := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] > endMs })
	if lo >= hi {
		return nil
	}

	out := make([]models.CachedBar, 0, hi-lo)
	for _, k := range c.keys[lo:hi] {
		out = append(out, c.bars[k])
	}
	return out
}

// Len returns the number of cached bars.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Capacity returns the effective (clamped) capacity.
func (c *Cache) Capacity() int { return c.capacity }

// Reset drops every bar. Called only by full component teardown.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars = make(map[int64]models.CachedBar)
	c.keys = nil
}
