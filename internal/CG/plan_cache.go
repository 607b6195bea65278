package CG

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"
)

// PlanCache is a thread-safe cache of compiled programs keyed by
// statement text. An entry is only returned for the schema version it was
// compiled against; DDL bumps the version, so stale plans are never run.
type PlanCache struct {
	mu     sync.RWMutex
	data   map[uint64]*cachedPlan
	limit  int
	hits   int64
	misses int64
}

type cachedPlan struct {
	text      string
	version   uint64
	plan      *Plan
	createdAt time.Time
	hits      int64 // updated atomically
}

// NewPlanCache creates a PlanCache that holds at most limit entries.
// A zero or negative limit disables eviction (unbounded cache).
func NewPlanCache(limit int) *PlanCache {
	return &PlanCache{
		data:  make(map[uint64]*cachedPlan),
		limit: limit,
	}
}

func planKey(text string) uint64 {
	return murmur3.Sum64([]byte(text))
}

// Get returns the plan cached for text at schema version.
func (pc *PlanCache) Get(text string, version uint64) (*Plan, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if plan, ok := pc.data[planKey(text)]; ok && plan.text == text && plan.version == version {
		atomic.AddInt64(&plan.hits, 1)
		atomic.AddInt64(&pc.hits, 1)
		return plan.plan, true
	}
	atomic.AddInt64(&pc.misses, 1)
	return nil, false
}

// Put stores plan under text. When the cache is full, the oldest entry
// is evicted to make room.
func (pc *PlanCache) Put(text string, version uint64, plan *Plan) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	key := planKey(text)
	if _, ok := pc.data[key]; !ok && pc.limit > 0 && len(pc.data) >= pc.limit {
		pc.evictOldest()
	}
	pc.data[key] = &cachedPlan{
		text:      text,
		version:   version,
		plan:      plan,
		createdAt: time.Now(),
	}
}

// Len returns the number of cached programs.
func (pc *PlanCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.data)
}

// Stats returns the hit and miss counters.
func (pc *PlanCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&pc.hits), atomic.LoadInt64(&pc.misses)
}

// Invalidate removes all entries from the cache.
func (pc *PlanCache) Invalidate() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.data = make(map[uint64]*cachedPlan)
}

// evictOldest removes the entry with the earliest createdAt timestamp.
// Caller must hold mu.Lock().
func (pc *PlanCache) evictOldest() {
	var oldestKey uint64
	var oldestTime time.Time
	first := true
	for k, v := range pc.data {
		if first || v.createdAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.createdAt
			first = false
		}
	}
	if !first {
		delete(pc.data, oldestKey)
	}
}
