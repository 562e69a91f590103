package mesh

import (
	"sync"
	"time"
)

const (
	// dedupCacheCap is the maximum number of dedup entries held at once
	// (spec I7). On overflow, oldest-by-insertion entries are evicted.
	dedupCacheCap = 1000

	// dedupEntryTTL bounds how long a dedup/relay-timestamp entry may
	// live regardless of cache pressure (spec §3, §4.7).
	dedupEntryTTL = 5 * time.Minute

	// relaySpacing is the minimum interval between two relays of the
	// same MessageId (spec §4.2).
	relaySpacing = 50 * time.Millisecond
)

type dedupEntry struct {
	ttl         uint8
	firstSeenAt time.Time
}

// DedupCache implements the MessageId dedup/freshness rule (spec §4.2
// steps 1-3, invariant I2): an entry is kept per MessageId recording the
// highest TTL seen so far. A new arrival passes only if it is the first
// copy of that MessageId, or if its TTL is strictly greater than the
// stored one (a "fresher" copy, which may still be relay-eligible even
// though it is never re-delivered locally — see engine.go).
type DedupCache struct {
	mu      sync.Mutex
	entries map[MessageID]*dedupEntry
	order   []MessageID // insertion order, oldest first, for I7 eviction
}

func newDedupCache() *DedupCache {
	return &DedupCache{entries: make(map[MessageID]*dedupEntry)}
}

// CheckAndRecord applies spec §4.2 step 2-3. pass is false when the
// frame must be dropped outright (I2: cached TTL >= incoming TTL).
// isNew is true only the very first time this MessageId is observed,
// which is what gates local delivery (I1); a passing fresher copy still
// reaches the type handlers and the peer table.
func (c *DedupCache) CheckAndRecord(id MessageID, ttl uint8, now time.Time) (pass, isNew, wasKnown bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if ok {
		if e.ttl >= ttl {
			return false, false, true
		}
		// Fresher copy: update the stored TTL so a still-later arrival
		// is compared against it, but this is not a first sighting.
		e.ttl = ttl
		return true, false, true
	}

	c.entries[id] = &dedupEntry{ttl: ttl, firstSeenAt: now}
	c.order = append(c.order, id)
	c.evictOverCapLocked()
	return true, true, false
}

func (c *DedupCache) evictOverCapLocked() {
	for len(c.entries) > dedupCacheCap && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// PruneExpired evicts entries older than dedupEntryTTL (spec §4.7).
func (c *DedupCache) PruneExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.firstSeenAt) >= dedupEntryTTL {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the current number of dedup entries.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RelayTimestampCache tracks the last relay time per MessageId,
// enforcing the per-message 50ms relay spacing (spec §4.2). Last relay
// time is updated at enqueue time, not at transmit time, per spec.
type RelayTimestampCache struct {
	mu   sync.Mutex
	last map[MessageID]time.Time
}

func newRelayTimestampCache() *RelayTimestampCache {
	return &RelayTimestampCache{last: make(map[MessageID]time.Time)}
}

// AllowAndRecord reports whether id may be relayed now, and if so
// records now as its new last-relay time.
func (c *RelayTimestampCache) AllowAndRecord(id MessageID, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.last[id]; ok && now.Sub(last) < relaySpacing {
		return false
	}
	c.last[id] = now
	return true
}

// PruneExpired evicts relay timestamps older than dedupEntryTTL (§4.7).
func (c *RelayTimestampCache) PruneExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, t := range c.last {
		if now.Sub(t) >= dedupEntryTTL {
			delete(c.last, id)
			removed++
		}
	}
	return removed
}
