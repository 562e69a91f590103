package mesh

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	// announceIntervalMin/Max bound the randomized delay between
	// outbound announcements (spec §4.4).
	announceIntervalMin = 4000 * time.Millisecond
	announceIntervalMax = 7000 * time.Millisecond

	// announceCooldown is the minimum interval between two *accepted*
	// announcements from the same sender (spec §4.4, GLOSSARY).
	announceCooldown = 3 * time.Second

	// announceCooldownTTL bounds how long a cooldown entry survives
	// regardless of traffic (spec §3, §4.7).
	announceCooldownTTL = 2 * time.Minute

	// announceMaxRelayHops is the exclusive upper bound on hop count
	// for relaying an announce frame (spec §4.4, I6).
	announceMaxRelayHops = 3
)

// announcementCooldown enforces "per-sender 3s minimum interval for
// accepted announcements" (GLOSSARY).
type announcementCooldown struct {
	mu   sync.Mutex
	last map[NodeHash]time.Time
}

func newAnnouncementCooldown() *announcementCooldown {
	return &announcementCooldown{last: make(map[NodeHash]time.Time)}
}

// Admit reports whether an announce from hash may be accepted now, and
// if so records now as the new last-accepted time.
func (c *announcementCooldown) Admit(hash NodeHash, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.last[hash]; ok && now.Sub(last) < announceCooldown {
		return false
	}
	c.last[hash] = now
	return true
}

// PruneExpired evicts cooldown entries older than announceCooldownTTL.
func (c *announcementCooldown) PruneExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for hash, t := range c.last {
		if now.Sub(t) >= announceCooldownTTL {
			delete(c.last, hash)
			removed++
		}
	}
	return removed
}

// directNeighborSet tracks nodes heard at hop 0, refreshed by sightings
// (spec §3, GLOSSARY "Direct neighbor").
type directNeighborSet struct {
	mu   sync.Mutex
	seen map[NodeHash]time.Time
}

func newDirectNeighborSet() *directNeighborSet {
	return &directNeighborSet{seen: make(map[NodeHash]time.Time)}
}

func (s *directNeighborSet) Mark(hash NodeHash, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[hash] = now
}

func (s *directNeighborSet) IsDirect(hash NodeHash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[hash]
	return ok
}

// AnnounceDecision is the result of processing one inbound announce
// frame (spec §4.4).
type AnnounceDecision struct {
	Accepted   bool // false when dropped by the cooldown
	HopCount   int
	Nickname   string
	FriendCode string
	ShouldRelay bool
}

// announcer owns the cooldown/neighbor state and the announce text
// convention shared by inbound and outbound handling.
type announcer struct {
	cooldown  *announcementCooldown
	neighbors *directNeighborSet
}

func newAnnouncer() *announcer {
	return &announcer{cooldown: newAnnouncementCooldown(), neighbors: newDirectNeighborSet()}
}

// HandleInbound applies spec §4.4's inbound rules: hop-0 neighbor
// marking happens unconditionally (even if the cooldown later drops the
// frame), since "If hopCount == 0, insert senderHash into the
// direct-neighbor set" is listed before the cooldown check and is not
// gated on acceptance.
func (a *announcer) HandleInbound(f Frame, now time.Time) AnnounceDecision {
	hop := HopCount(f.TTL)
	if hop == 0 {
		a.neighbors.Mark(f.SenderHash, now)
	}
	if !a.cooldown.Admit(f.SenderHash, now) {
		return AnnounceDecision{Accepted: false, HopCount: hop}
	}
	nickname, friendCode := parseAnnounceText(f.Text)
	shouldRelay := f.TTL > 0 && hop > 0 && hop < announceMaxRelayHops
	return AnnounceDecision{
		Accepted:    true,
		HopCount:    hop,
		Nickname:    nickname,
		FriendCode:  friendCode,
		ShouldRelay: shouldRelay,
	}
}

// parseAnnounceText parses the "<nickname>|<friendCode>" convention
// (spec §4.1). The friendCode half may be absent in legacy form.
func parseAnnounceText(text string) (nickname, friendCode string) {
	parts := strings.SplitN(text, "|", 2)
	nickname = parts[0]
	if len(parts) > 1 {
		friendCode = parts[1]
	}
	return nickname, friendCode
}

// RunOutbound drives the randomized announce timer (spec §4.4). payload
// is re-evaluated on every tick so a nickname change takes effect on
// the next announce without restarting the loop.
func (a *announcer) RunOutbound(ctx context.Context, payload func() string, send func(ctx context.Context, text string)) {
	for {
		if !sleepCtx(ctx, jitter(announceIntervalMin, announceIntervalMax)) {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		send(ctx, payload())
	}
}
