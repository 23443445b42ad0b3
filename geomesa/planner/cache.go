package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geomesa/geomesa-core/geomesa/filter"
)

// PlanCache caches ScanPlans to avoid re-planning identical queries,
// grounded directly on the teacher's datalog/planner/cache.go: a
// hand-rolled map behind a RWMutex with a TTL and size-bounded eviction,
// rather than a general-purpose cache library — plans are cheap to
// recompute and the entry count is small, so the extra dependency surface
// of a library cache isn't warranted here (ristretto is reserved for the
// much larger, read-hot schema/cardinality cache in geomesa/schema).
type PlanCache struct {
	mu      sync.RWMutex
	entries map[string]*cachedPlan

	hits, misses int64

	maxSize int
	ttl     time.Duration
}

type cachedPlan struct {
	plan      *ScanPlan
	timestamp time.Time
}

// NewPlanCache creates a PlanCache; maxSize<=0 defaults to 1000 entries,
// ttl<=0 defaults to 5 minutes.
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PlanCache{
		entries: make(map[string]*cachedPlan),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached plan, if present and not expired.
func (c *PlanCache) Get(ftName string, pred filter.Pred, hints Hints) (*ScanPlan, bool) {
	if c == nil {
		return nil, false
	}
	key := computeKey(ftName, pred, hints)

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if time.Since(cached.timestamp) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return cached.plan, true
}

// Set stores a plan, evicting expired then oldest entries if the cache is
// full.
func (c *PlanCache) Set(ftName string, pred filter.Pred, hints Hints, plan *ScanPlan) {
	if c == nil || plan == nil {
		return
	}
	key := computeKey(ftName, pred, hints)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictExpired()
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
	}
	c.entries[key] = &cachedPlan{plan: plan, timestamp: time.Now()}
}

// Clear removes every cached plan and resets statistics.
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cachedPlan)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns cache hit/miss counters and current size.
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.entries)
}

func (c *PlanCache) evictExpired() {
	now := time.Now()
	for k, v := range c.entries {
		if now.Sub(v.timestamp) > c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *PlanCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, v := range c.entries {
		if first || v.timestamp.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.timestamp
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// computeKey derives a deterministic cache key from the feature type name,
// the predicate tree (via its Go-syntax representation, which is stable
// for a given tree shape) and the hints that affect planning.
func computeKey(ftName string, pred filter.Pred, hints Hints) string {
	h := sha256.New()
	fmt.Fprintf(h, "FT:%s;", ftName)
	fmt.Fprintf(h, "PRED:%#v;", pred)
	densityCopy := hints
	if hints.Density != nil {
		d := *hints.Density
		densityCopy.Density = &d
		fmt.Fprintf(h, "HINTS:%+v;DENSITY:%+v;", densityCopy, d)
	} else {
		fmt.Fprintf(h, "HINTS:%+v;", densityCopy)
	}
	return hex.EncodeToString(h.Sum(nil))
}
