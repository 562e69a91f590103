package mesh

import (
	"context"
	"sync"
	"testing"
)

func TestHandleDirectedInboundTargetMatch(t *testing.T) {
	d := HandleDirectedInbound(Frame{TargetHash: 0x1234, TTL: 3}, 0x1234)
	if !d.TargetMatches {
		t.Fatal("expected TargetMatches true when TargetHash == ownHash")
	}
	if !d.ShouldRelay {
		t.Fatal("expected ShouldRelay true when TTL > 0")
	}
}

func TestHandleDirectedInboundNoMatch(t *testing.T) {
	d := HandleDirectedInbound(Frame{TargetHash: 0x1234, TTL: 3}, 0x9999)
	if d.TargetMatches {
		t.Fatal("expected TargetMatches false for non-matching target")
	}
	if !d.ShouldRelay {
		t.Fatal("non-matching frame should still relay while TTL > 0")
	}
}

func TestHandleDirectedInboundTTLZeroNeverRelays(t *testing.T) {
	d := HandleDirectedInbound(Frame{TargetHash: 0x1234, TTL: 0}, 0x1234)
	if d.ShouldRelay {
		t.Fatal("expected ShouldRelay false at TTL 0, even for a matching target")
	}
}

func TestParseFriendRequestText(t *testing.T) {
	nickname, friendCode := ParseFriendRequestText("Carol|5678")
	if nickname != "Carol" || friendCode != "5678" {
		t.Fatalf("got (%q, %q), want (Carol, 5678)", nickname, friendCode)
	}
}

func TestFriendRequestRetryQueueDecrementsAndExpires(t *testing.T) {
	q := newFriendRequestRetryQueue()
	q.Add("ABCD", 2)

	var mu sync.Mutex
	var sends []string
	send := func(ctx context.Context, code string) {
		mu.Lock()
		sends = append(sends, code)
		mu.Unlock()
	}

	q.tick(context.Background(), send)
	if _, ok := q.Pending()["ABCD"]; !ok {
		t.Fatal("expected ABCD still pending after first tick (2->1)")
	}
	q.tick(context.Background(), send)
	if _, ok := q.Pending()["ABCD"]; ok {
		t.Fatal("expected ABCD removed after counter reaches zero")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sends) != 2 {
		t.Fatalf("send called %d times, want 2", len(sends))
	}
}

func TestFriendRequestRetryQueueCancel(t *testing.T) {
	q := newFriendRequestRetryQueue()
	q.Add("ABCD", 5)
	if ok := q.Cancel("ABCD"); !ok {
		t.Fatal("Cancel should report true for a pending entry")
	}
	if ok := q.Cancel("ABCD"); ok {
		t.Fatal("Cancel should report false once already removed")
	}
	if _, ok := q.Pending()["ABCD"]; ok {
		t.Fatal("expected ABCD absent from Pending after cancel")
	}
}

func TestFriendRequestRetryQueueRoundRobinsAcrossTargets(t *testing.T) {
	q := newFriendRequestRetryQueue()
	q.Add("AAAA", 1)
	q.Add("BBBB", 1)

	var mu sync.Mutex
	var sends []string
	send := func(ctx context.Context, code string) {
		mu.Lock()
		sends = append(sends, code)
		mu.Unlock()
	}

	q.tick(context.Background(), send)
	q.tick(context.Background(), send)

	mu.Lock()
	defer mu.Unlock()
	if len(sends) != 2 || sends[0] != "AAAA" || sends[1] != "BBBB" {
		t.Fatalf("sends = %v, want [AAAA BBBB] in FIFO order", sends)
	}
}

func TestFriendRequestRetryQueueAddResetsCounter(t *testing.T) {
	q := newFriendRequestRetryQueue()
	q.Add("AAAA", 1)
	q.Add("AAAA", friendRequestTotalSends)
	if n := q.Pending()["AAAA"]; n != friendRequestTotalSends {
		t.Fatalf("Pending()[AAAA] = %d, want %d after re-Add", n, friendRequestTotalSends)
	}
}
