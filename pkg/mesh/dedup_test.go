package mesh

import (
	"testing"
	"time"
)

func TestDedupCacheFirstArrivalIsNew(t *testing.T) {
	c := newDedupCache()
	now := time.Now()
	pass, isNew, wasKnown := c.CheckAndRecord("h:0001", 5, now)
	if !pass || !isNew || wasKnown {
		t.Fatalf("first arrival = (%v, %v, %v), want (true, true, false)", pass, isNew, wasKnown)
	}
}

func TestDedupCacheExactDuplicateDropped(t *testing.T) {
	c := newDedupCache()
	now := time.Now()
	c.CheckAndRecord("h:0001", 5, now)

	pass, isNew, wasKnown := c.CheckAndRecord("h:0001", 5, now)
	if pass || isNew || !wasKnown {
		t.Fatalf("exact duplicate = (%v, %v, %v), want (false, false, true)", pass, isNew, wasKnown)
	}
}

func TestDedupCacheLowerTTLDropped(t *testing.T) {
	c := newDedupCache()
	now := time.Now()
	c.CheckAndRecord("h:0001", 5, now)

	pass, _, wasKnown := c.CheckAndRecord("h:0001", 3, now)
	if pass || !wasKnown {
		t.Fatalf("lower-TTL re-arrival = (pass=%v, wasKnown=%v), want (false, true)", pass, wasKnown)
	}
}

func TestDedupCacheStrictlyGreaterTTLPassesButIsNotNew(t *testing.T) {
	c := newDedupCache()
	now := time.Now()
	c.CheckAndRecord("h:0001", 3, now)

	pass, isNew, wasKnown := c.CheckAndRecord("h:0001", 5, now)
	if !pass || isNew || !wasKnown {
		t.Fatalf("fresher copy = (%v, %v, %v), want (true, false, true)", pass, isNew, wasKnown)
	}
}

func TestDedupCacheEvictsOverCapacity(t *testing.T) {
	c := newDedupCache()
	now := time.Now()
	for i := 0; i < dedupCacheCap+10; i++ {
		id := MessageID(hashPrefix("h:", uint16(i)))
		c.CheckAndRecord(id, 5, now)
	}
	if c.Len() > dedupCacheCap {
		t.Fatalf("Len() = %d, want <= %d", c.Len(), dedupCacheCap)
	}
}

func TestDedupCachePruneExpired(t *testing.T) {
	c := newDedupCache()
	old := time.Now().Add(-dedupEntryTTL - time.Second)
	c.CheckAndRecord("h:0001", 5, old)
	c.CheckAndRecord("h:0002", 5, time.Now())

	removed := c.PruneExpired(time.Now())
	if removed != 1 {
		t.Fatalf("PruneExpired removed %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() after prune = %d, want 1", c.Len())
	}
}

func TestRelayTimestampCacheEnforcesSpacing(t *testing.T) {
	c := newRelayTimestampCache()
	now := time.Now()
	if !c.AllowAndRecord("h:0001", now) {
		t.Fatal("first relay should be allowed")
	}
	if c.AllowAndRecord("h:0001", now.Add(relaySpacing/2)) {
		t.Fatal("relay within spacing window should be denied")
	}
	if !c.AllowAndRecord("h:0001", now.Add(relaySpacing+time.Millisecond)) {
		t.Fatal("relay after spacing window should be allowed")
	}
}

func TestRelayTimestampCachePruneExpired(t *testing.T) {
	c := newRelayTimestampCache()
	old := time.Now().Add(-dedupEntryTTL - time.Second)
	c.AllowAndRecord("h:0001", old)

	removed := c.PruneExpired(time.Now())
	if removed != 1 {
		t.Fatalf("PruneExpired removed %d, want 1", removed)
	}
}
