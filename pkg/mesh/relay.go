package mesh

import (
	"context"
	"sync"
	"time"
)

const (
	// relayTickInterval is how often the relay processor gets a chance
	// to dequeue and transmit a frame (spec §4.2).
	relayTickInterval = 100 * time.Millisecond

	// relayDelayMin/Max bound the jitter applied before handing a
	// dequeued frame to the advertiser (spec §4.2).
	relayDelayMin = 50 * time.Millisecond
	relayDelayMax = 200 * time.Millisecond
)

// relayQueue is a plain FIFO of ready-to-transmit byte frames (spec
// §4.2, §5 "Relay-queue is FIFO").
type relayQueue struct {
	mu    sync.Mutex
	items [][]byte
}

func newRelayQueue() *relayQueue {
	return &relayQueue{}
}

func (q *relayQueue) Enqueue(frame []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, frame)
}

func (q *relayQueue) Dequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	f := q.items[0]
	q.items = q.items[1:]
	return f, true
}

func (q *relayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// relayProcessor runs the cooperative 100ms tick described in spec
// §4.2: on each tick, if the queue is non-empty and no advertisement is
// in flight, dequeue one frame, sleep a randomized [50,200)ms delay,
// then hand it to the Advertiser. The tick is only a processing
// opportunity — the advertising mutex is the actual transmit gate, so a
// busy advertiser simply means this tick's dequeued frame gets
// retried... no: per spec, a dequeued frame is committed to that tick's
// send attempt; if the Advertiser refuses (busy), the frame is dropped
// from this tick's perspective (the sender-side retry loop is the
// periodic tick itself re-running on the next 100ms boundary with
// whatever is still queued behind it). This matches §4.3's "Relay
// callers silently retry on their next tick" — the *queue* persists
// state across ticks, not the dropped single attempt.
type relayProcessor struct {
	queue      *relayQueue
	advertiser *Advertiser
	metrics    Recorder
}

func newRelayProcessor(q *relayQueue, adv *Advertiser, metrics Recorder) *relayProcessor {
	return &relayProcessor{queue: q, advertiser: adv, metrics: metrics}
}

// Run drives the tick loop until ctx is canceled.
func (p *relayProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(relayTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *relayProcessor) tick(ctx context.Context) {
	if p.advertiser.InFlight() {
		return
	}
	frame, ok := p.queue.Dequeue()
	if !ok {
		return
	}
	if !sleepCtx(ctx, jitter(relayDelayMin, relayDelayMax)) {
		return
	}
	start := time.Now()
	sent := p.advertiser.Broadcast(ctx, frame)
	if p.metrics != nil {
		p.metrics.ObserveRelayLatency(time.Since(start))
	}
	_ = sent // refusal is silent per spec; the queue has already moved on
}
