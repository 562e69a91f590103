package mesh

import "sync"

// broadcaster is a single-producer, multi-subscriber fan-out channel
// registry: each Subscribe call gets its own buffered channel, and
// Publish sends to all of them without blocking on a slow or absent
// consumer (spec §9: "Streams with multiple subscribers → broadcast
// channels or observer registries ... drop-on-no-consumer; back-pressure
// is not required because consumers are UI observers"). Grounded on the
// teacher's single-producer event bus in peermanager.go, reimplemented
// here without a libp2p event bus dependency.
type broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

func newBroadcaster[T any]() *broadcaster[T] {
	return &broadcaster[T]{subs: make(map[int]chan T)}
}

// Subscribe returns a channel that receives every value Published after
// this call, and an unsubscribe function. The channel is buffered so a
// momentarily slow consumer doesn't stall the engine loop; if the
// buffer fills, further values are dropped for that subscriber rather
// than blocking the publisher.
func (b *broadcaster[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan T, buffer)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish fans a value out to every current subscriber. Never blocks.
func (b *broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// EventStreams groups every observable stream the engine exposes (spec
// §4.9). Each field is independently subscribable.
type EventStreams struct {
	messages          *broadcaster[MeshMessage]
	directedMessages  *broadcaster[MeshMessage]
	peerSeen          *broadcaster[PeerSeenEvent]
	friendCodeFound   *broadcaster[FriendCodeDiscoveryEvent]
	friendRequests    *broadcaster[FriendRequestEvent]
	rawPackets        *broadcaster[RawPacketEvent]
	status            *broadcaster[string]
	errors            *broadcaster[string]
}

func newEventStreams() *EventStreams {
	return &EventStreams{
		messages:         newBroadcaster[MeshMessage](),
		directedMessages: newBroadcaster[MeshMessage](),
		peerSeen:         newBroadcaster[PeerSeenEvent](),
		friendCodeFound:  newBroadcaster[FriendCodeDiscoveryEvent](),
		friendRequests:   newBroadcaster[FriendRequestEvent](),
		rawPackets:       newBroadcaster[RawPacketEvent](),
		status:           newBroadcaster[string](),
		errors:           newBroadcaster[string](),
	}
}

// Messages yields classified broadcast (message/sos) MeshMessages.
func (e *EventStreams) Messages() (<-chan MeshMessage, func()) { return e.messages.Subscribe(32) }

// DirectedMessages yields directed MeshMessages addressed to this node.
func (e *EventStreams) DirectedMessages() (<-chan MeshMessage, func()) {
	return e.directedMessages.Subscribe(32)
}

// PeerSeen yields peer-table update events.
func (e *EventStreams) PeerSeen() (<-chan PeerSeenEvent, func()) { return e.peerSeen.Subscribe(32) }

// FriendCodeDiscoveries yields (senderHash, friendCode) associations
// learned from announce frames.
func (e *EventStreams) FriendCodeDiscoveries() (<-chan FriendCodeDiscoveryEvent, func()) {
	return e.friendCodeFound.Subscribe(16)
}

// FriendRequests yields inbound friend-request events.
func (e *EventStreams) FriendRequests() (<-chan FriendRequestEvent, func()) {
	return e.friendRequests.Subscribe(16)
}

// RawPackets yields a diagnostic record for every inbound frame, even
// dropped ones (spec §4.9).
func (e *EventStreams) RawPackets() (<-chan RawPacketEvent, func()) {
	return e.rawPackets.Subscribe(64)
}

// Status yields human-readable status strings.
func (e *EventStreams) Status() (<-chan string, func()) { return e.status.Subscribe(16) }

// Errors yields human-readable error strings (spec §7).
func (e *EventStreams) Errors() (<-chan string, func()) { return e.errors.Subscribe(16) }
