package mesh

import (
	"context"
	"testing"
	"time"
)

func newTestEngine(nodeID string) (*Engine, *testRadio) {
	radio := &testRadio{}
	e := NewEngine(Config{NodeID: nodeID, Nickname: "Tester"}, radio, nil, nil)
	return e, radio
}

func encodeOrFatal(t *testing.T, f Frame) []byte {
	t.Helper()
	raw, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return raw
}

func recvWithTimeout[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		var zero T
		return zero, false
	}
}

func TestEngineInboundBroadcastMessageDelivers(t *testing.T) {
	e, _ := newTestEngine("local-node")
	msgs, unsub := e.Events().Messages()
	defer unsub()

	peerHash := NodeHashOf("peer-node")
	raw := encodeOrFatal(t, Frame{
		Type:       FrameMessage,
		TTL:        3,
		MsgIDHash:  0xBEEF,
		SenderHash: peerHash,
		Text:       "hello mesh",
	})

	e.handleInbound(raw, time.Now())

	msg, ok := recvWithTimeout(t, msgs, time.Second)
	if !ok {
		t.Fatal("expected a MeshMessage on the Messages stream")
	}
	if msg.Content != "hello mesh" || msg.SenderHash != peerHash {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if e.msgLog.Len() != 1 {
		t.Fatalf("msgLog.Len() = %d, want 1", e.msgLog.Len())
	}
	if e.relayQueue.Len() != 1 {
		t.Fatal("expected the inbound message to be enqueued for relay (TTL > 0)")
	}
}

func TestEngineDropsSelfOriginatedFrame(t *testing.T) {
	e, _ := newTestEngine("local-node")
	msgs, unsub := e.Events().Messages()
	defer unsub()

	raw := encodeOrFatal(t, Frame{
		Type:       FrameMessage,
		TTL:        3,
		MsgIDHash:  0x0001,
		SenderHash: e.ownHash,
		Text:       "echo of my own packet",
	})

	e.handleInbound(raw, time.Now())

	if _, ok := recvWithTimeout(t, msgs, 50*time.Millisecond); ok {
		t.Fatal("expected no message delivered for a self-originated frame")
	}
	if e.relayQueue.Len() != 0 {
		t.Fatal("expected self-originated frame not to be relayed")
	}
}

func TestEngineDropsExactDuplicate(t *testing.T) {
	e, _ := newTestEngine("local-node")
	peerHash := NodeHashOf("peer-node")
	raw := encodeOrFatal(t, Frame{Type: FrameMessage, TTL: 3, MsgIDHash: 0x0002, SenderHash: peerHash, Text: "x"})

	e.handleInbound(raw, time.Now())
	firstQueueLen := e.relayQueue.Len()

	e.handleInbound(raw, time.Now())
	if e.relayQueue.Len() != firstQueueLen {
		t.Fatal("expected an exact duplicate to be dropped before relay")
	}
	if e.msgLog.Len() != 1 {
		t.Fatalf("msgLog.Len() = %d, want 1 (duplicate must not append again)", e.msgLog.Len())
	}
}

func TestEngineFresherCopyRelaysButDoesNotRedeliver(t *testing.T) {
	e, _ := newTestEngine("local-node")
	msgs, unsub := e.Events().Messages()
	defer unsub()
	peerHash := NodeHashOf("peer-node")

	base := time.Now()
	low := encodeOrFatal(t, Frame{Type: FrameMessage, TTL: 2, MsgIDHash: 0x0003, SenderHash: peerHash, Text: "x"})
	e.handleInbound(low, base)
	if _, ok := recvWithTimeout(t, msgs, time.Second); !ok {
		t.Fatal("expected first arrival to deliver")
	}

	// Spaced beyond relaySpacing so the second copy isn't silently
	// throttled by the per-MessageId relay-spacing rule.
	fresh := encodeOrFatal(t, Frame{Type: FrameMessage, TTL: 4, MsgIDHash: 0x0003, SenderHash: peerHash, Text: "x"})
	e.handleInbound(fresh, base.Add(relaySpacing+time.Millisecond))
	if _, ok := recvWithTimeout(t, msgs, 50*time.Millisecond); ok {
		t.Fatal("expected a fresher copy not to be re-delivered to subscribers")
	}
	if e.relayQueue.Len() != 2 {
		t.Fatalf("relayQueue.Len() = %d, want 2 (both copies relay-eligible)", e.relayQueue.Len())
	}
	if e.msgLog.Len() != 1 {
		t.Fatalf("msgLog.Len() = %d, want 1 (fresher copy must not append again)", e.msgLog.Len())
	}
}

func TestEngineInboundDirectedMessageToSelf(t *testing.T) {
	e, _ := newTestEngine("local-node")
	directed, unsub := e.Events().DirectedMessages()
	defer unsub()
	peerHash := NodeHashOf("peer-node")

	raw := encodeOrFatal(t, Frame{
		Type:       FrameDirect,
		TTL:        2,
		MsgIDHash:  0x0010,
		SenderHash: peerHash,
		TargetHash: e.ownHash,
		Text:       "psst",
	})

	e.handleInbound(raw, time.Now())

	msg, ok := recvWithTimeout(t, directed, time.Second)
	if !ok {
		t.Fatal("expected a directed message addressed to this node")
	}
	if msg.Content != "psst" || msg.TargetFriendCode != e.ownHash.FriendCode() {
		t.Fatalf("unexpected directed message: %+v", msg)
	}
	if e.relayQueue.Len() != 1 {
		t.Fatal("expected a directed frame with TTL > 0 to still be relayed")
	}
}

func TestEngineInboundDirectedMessageNotForSelfStillRelays(t *testing.T) {
	e, _ := newTestEngine("local-node")
	directed, unsub := e.Events().DirectedMessages()
	defer unsub()
	peerHash := NodeHashOf("peer-node")
	otherHash := NodeHashOf("someone-else")

	raw := encodeOrFatal(t, Frame{
		Type:       FrameDirect,
		TTL:        2,
		MsgIDHash:  0x0011,
		SenderHash: peerHash,
		TargetHash: otherHash,
		Text:       "not for me",
	})
	e.handleInbound(raw, time.Now())

	if _, ok := recvWithTimeout(t, directed, 50*time.Millisecond); ok {
		t.Fatal("directed message for another node should not be delivered locally")
	}
	if e.relayQueue.Len() != 1 {
		t.Fatal("expected non-matching directed frame to still relay while TTL > 0")
	}
}

func TestEngineInboundFriendRequestToSelfCancelsPendingRetry(t *testing.T) {
	e, _ := newTestEngine("local-node")
	reqs, unsub := e.Events().FriendRequests()
	defer unsub()
	peerHash := NodeHashOf("peer-node")
	peerCode := peerHash.FriendCode()

	e.friendReqs.Add(peerCode, friendRequestTotalSends-1)

	raw := encodeOrFatal(t, Frame{
		Type:       FrameFriendRequest,
		TTL:        2,
		MsgIDHash:  0x0020,
		SenderHash: peerHash,
		TargetHash: e.ownHash,
		Text:       "Peer|" + peerCode,
	})
	e.handleInbound(raw, time.Now())

	ev, ok := recvWithTimeout(t, reqs, time.Second)
	if !ok {
		t.Fatal("expected a FriendRequestEvent")
	}
	if ev.Nickname != "Peer" || ev.FriendCode != peerCode {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if _, pending := e.friendReqs.Pending()[peerCode]; pending {
		t.Fatal("expected mutual friend request to cancel the pending retry")
	}
}

func TestEngineSendMessageEnqueuesOriginatedFrame(t *testing.T) {
	e, _ := newTestEngine("local-node")
	if err := e.SendMessage("hi", nil, nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if e.relayQueue.Len() != 1 {
		t.Fatalf("relayQueue.Len() = %d, want 1", e.relayQueue.Len())
	}
}

func TestEngineAddFriendSchedulesRetry(t *testing.T) {
	e, _ := newTestEngine("local-node")
	targetCode := NodeHashOf("friend-node").FriendCode()

	if err := e.AddFriend(targetCode); err != nil {
		t.Fatalf("AddFriend: %v", err)
	}
	if n, ok := e.friendReqs.Pending()[targetCode]; !ok || n != friendRequestTotalSends-1 {
		t.Fatalf("Pending()[%s] = (%d, %v), want (%d, true)", targetCode, n, ok, friendRequestTotalSends-1)
	}
	if e.relayQueue.Len() != 1 {
		t.Fatal("expected the initial friend request to be enqueued immediately")
	}
}

func TestEngineSendDirectRejectsBadFriendCode(t *testing.T) {
	e, _ := newTestEngine("local-node")
	if err := e.SendDirect("zz", "hi"); err == nil {
		t.Fatal("expected error for malformed friend code")
	}
}

func TestEngineDecodeErrorDropsWithoutPanicking(t *testing.T) {
	e, _ := newTestEngine("local-node")
	raw, unsub := e.Events().RawPackets()
	defer unsub()

	e.handleInbound([]byte{0x01, 0x02}, time.Now())

	evt, ok := recvWithTimeout(t, raw, time.Second)
	if !ok {
		t.Fatal("expected a RawPacketEvent even for an undecodable frame")
	}
	if evt.DecodeErr == nil {
		t.Fatal("expected DecodeErr to be set")
	}
	if e.relayQueue.Len() != 0 {
		t.Fatal("expected an undecodable frame not to be relayed")
	}
}

func TestEngineSetNicknameUpdatesAnnouncePayload(t *testing.T) {
	e, _ := newTestEngine("local-node")
	if err := e.SetNickname("NewName"); err != nil {
		t.Fatalf("SetNickname: %v", err)
	}
	if e.Nickname() != "NewName" {
		t.Fatalf("Nickname() = %q, want NewName", e.Nickname())
	}
	if got := e.announcePayload(); got != "NewName|"+e.ownHash.FriendCode() {
		t.Fatalf("announcePayload() = %q", got)
	}
}

func TestEngineRunStopsOnContextCancel(t *testing.T) {
	e, _ := newTestEngine("local-node")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}
}
