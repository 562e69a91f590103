package mesh

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	// friendRequestTotalSends is N in spec §4.6: one immediate send plus
	// N-1 retries.
	friendRequestTotalSends = 5

	// friendRequestRetryInterval is the periodic ticker period popping
	// one pending retry at a time (spec §4.6).
	friendRequestRetryInterval = 3 * time.Second
)

// DirectedDecision is the result of processing one inbound direct or
// friendRequest frame (spec §4.6).
type DirectedDecision struct {
	TargetMatches bool
	ShouldRelay   bool
}

// HandleDirectedInbound applies spec §4.6 steps 1 and 4, which are
// identical for both direct and friendRequest subtypes: the on-wire
// shape and target-match/always-relay rule don't differ by subtype,
// only what happens with the text on a match does (handled by the
// caller using ParseFriendRequestText).
func HandleDirectedInbound(f Frame, ownHash NodeHash) DirectedDecision {
	return DirectedDecision{
		TargetMatches: f.TargetHash == ownHash,
		ShouldRelay:   f.TTL > 0,
	}
}

// ParseFriendRequestText parses the "<senderNickname>|<senderFriendCode>"
// convention (spec §4.1, §4.6).
func ParseFriendRequestText(text string) (nickname, friendCode string) {
	parts := strings.SplitN(text, "|", 2)
	nickname = parts[0]
	if len(parts) > 1 {
		friendCode = parts[1]
	}
	return nickname, friendCode
}

// friendRequestRetryQueue implements the outbound friendRequest retry
// policy (spec §4.6 "Outbound friendRequest retry"): immediately send
// one request, then retry up to friendRequestTotalSends-1 more times at
// friendRequestRetryInterval, round-robining across multiple
// outstanding targets so no single pending request starves another.
// Grounded on the teacher's ManagedPeer retry/backoff bookkeeping in
// peermanager.go, simplified from exponential backoff to a flat
// decrement-to-zero counter as the spec requires.
type friendRequestRetryQueue struct {
	mu     sync.Mutex
	order  []string
	counts map[string]int
}

func newFriendRequestRetryQueue() *friendRequestRetryQueue {
	return &friendRequestRetryQueue{counts: make(map[string]int)}
}

// Add enqueues retriesRemaining additional attempts for friendCode. If
// friendCode is already pending, its counter is reset (a fresh
// addFriend call supersedes an in-flight one).
func (q *friendRequestRetryQueue) Add(friendCode string, retriesRemaining int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.counts[friendCode]; !exists {
		q.order = append(q.order, friendCode)
	}
	q.counts[friendCode] = retriesRemaining
}

// Cancel removes friendCode from the pending map, implementing the
// mutual-add shortcut (spec §4.6: a friendRequest received from X
// cancels pending retries for X).
func (q *friendRequestRetryQueue) Cancel(friendCode string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.counts[friendCode]
	delete(q.counts, friendCode)
	return ok
}

// Pending reports the retry counters currently outstanding, for status
// display.
func (q *friendRequestRetryQueue) Pending() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.counts))
	for k, v := range q.counts {
		out[k] = v
	}
	return out
}

// Run pops one pending entry per tick, retransmits it via send,
// decrements its counter, and removes it once it reaches zero.
func (q *friendRequestRetryQueue) Run(ctx context.Context, send func(ctx context.Context, friendCode string)) {
	ticker := time.NewTicker(friendRequestRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.tick(ctx, send)
		}
	}
}

func (q *friendRequestRetryQueue) tick(ctx context.Context, send func(ctx context.Context, friendCode string)) {
	q.mu.Lock()
	var code string
	for len(q.order) > 0 {
		candidate := q.order[0]
		q.order = q.order[1:]
		if _, ok := q.counts[candidate]; ok {
			code = candidate
			break
		}
	}
	q.mu.Unlock()

	if code == "" {
		return
	}

	send(ctx, code)

	q.mu.Lock()
	defer q.mu.Unlock()
	n, ok := q.counts[code]
	if !ok {
		return // canceled (mutual-add) while send was in flight
	}
	n--
	if n <= 0 {
		delete(q.counts, code)
		return
	}
	q.counts[code] = n
	q.order = append(q.order, code)
}
