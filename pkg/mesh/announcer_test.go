package mesh

import (
	"context"
	"testing"
	"time"
)

func TestParseAnnounceTextSplitsNicknameAndFriendCode(t *testing.T) {
	nickname, friendCode := parseAnnounceText("Alice|ABCD")
	if nickname != "Alice" || friendCode != "ABCD" {
		t.Fatalf("got (%q, %q), want (Alice, ABCD)", nickname, friendCode)
	}
}

func TestParseAnnounceTextLegacyFormHasNoFriendCode(t *testing.T) {
	nickname, friendCode := parseAnnounceText("Alice")
	if nickname != "Alice" || friendCode != "" {
		t.Fatalf("got (%q, %q), want (Alice, \"\")", nickname, friendCode)
	}
}

func TestAnnouncerHandleInboundMarksHopZeroNeighborRegardlessOfCooldown(t *testing.T) {
	a := newAnnouncer()
	now := time.Now()
	f := Frame{SenderHash: 0x1111, TTL: DefaultTTL, Text: "Alice|1111"} // hop 0

	a.HandleInbound(f, now)
	// Immediate repeat is dropped by cooldown, but hop-0 marking must
	// have already happened on the first call.
	a.HandleInbound(f, now.Add(time.Millisecond))

	if !a.neighbors.IsDirect(0x1111) {
		t.Fatal("expected sender marked as direct neighbor despite cooldown drop")
	}
}

func TestAnnouncerHandleInboundCooldownDropsRepeat(t *testing.T) {
	a := newAnnouncer()
	now := time.Now()
	f := Frame{SenderHash: 0x2222, TTL: DefaultTTL, Text: "Bob|2222"}

	d1 := a.HandleInbound(f, now)
	if !d1.Accepted {
		t.Fatal("first announce should be accepted")
	}
	d2 := a.HandleInbound(f, now.Add(time.Second))
	if d2.Accepted {
		t.Fatal("announce within 3s cooldown should be dropped")
	}
	d3 := a.HandleInbound(f, now.Add(announceCooldown+time.Millisecond))
	if !d3.Accepted {
		t.Fatal("announce after cooldown window should be accepted")
	}
}

func TestAnnouncerHandleInboundRelayEligibility(t *testing.T) {
	a := newAnnouncer()
	now := time.Now()

	// hop 0 (TTL == DefaultTTL): never relay-eligible.
	hop0 := a.HandleInbound(Frame{SenderHash: 0x1, TTL: DefaultTTL, Text: "a"}, now)
	if hop0.ShouldRelay {
		t.Fatal("hop-0 announce should not be relay-eligible")
	}

	// hop 1, TTL still > 0: relay-eligible.
	hop1 := a.HandleInbound(Frame{SenderHash: 0x2, TTL: DefaultTTL - 1, Text: "b"}, now)
	if !hop1.ShouldRelay {
		t.Fatal("hop-1 announce with TTL>0 should be relay-eligible")
	}

	// hop >= announceMaxRelayHops: not relay-eligible.
	hopMax := a.HandleInbound(Frame{SenderHash: 0x3, TTL: DefaultTTL - uint8(announceMaxRelayHops), Text: "c"}, now)
	if hopMax.ShouldRelay {
		t.Fatal("announce at max relay hop bound should not be relay-eligible")
	}

	// TTL == 0: never relay-eligible regardless of hop count.
	ttlZero := a.HandleInbound(Frame{SenderHash: 0x4, TTL: 0, Text: "d"}, now)
	if ttlZero.ShouldRelay {
		t.Fatal("TTL-0 announce should not be relay-eligible")
	}
}

func TestAnnouncementCooldownPruneExpired(t *testing.T) {
	c := newAnnouncementCooldown()
	old := time.Now().Add(-announceCooldownTTL - time.Second)
	c.Admit(0x1, old)
	removed := c.PruneExpired(time.Now())
	if removed != 1 {
		t.Fatalf("PruneExpired removed %d, want 1", removed)
	}
}

func TestAnnouncerRunOutboundStopsOnCancel(t *testing.T) {
	a := newAnnouncer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	done := make(chan struct{})
	go func() {
		a.RunOutbound(ctx, func() string { return "x" }, func(ctx context.Context, text string) {
			called = true
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunOutbound did not return promptly after context cancellation")
	}
	if called {
		t.Fatal("send should never be called when context is canceled before the first tick")
	}
}
