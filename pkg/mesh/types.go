package mesh

import "time"

// NodeHash is the 16-bit deterministic hash of a NodeId (spec §3). It
// fits in two on-wire bytes and doubles as the human-shareable
// FriendCode once rendered as 4 hex digits.
type NodeHash uint16

// MessageID is the dedup-cache key derived from the on-wire 16-bit
// msgIdHash (spec §4.2 step 1): "h:" + 4 hex digits.
type MessageID string

// FrameType is the wire type code occupying the first header byte
// (spec §4.1). Unknown codes fail to decode.
type FrameType byte

const (
	FrameAnnounce      FrameType = 0x01
	FrameFriendRequest FrameType = 0x02
	FrameMessage       FrameType = 0x04
	FrameDirect        FrameType = 0x08
	FrameSOS           FrameType = 0x10
	FrameAck           FrameType = 0x20
)

func (t FrameType) String() string {
	switch t {
	case FrameAnnounce:
		return "announce"
	case FrameFriendRequest:
		return "friendRequest"
	case FrameMessage:
		return "message"
	case FrameDirect:
		return "direct"
	case FrameSOS:
		return "sos"
	case FrameAck:
		return "ack"
	default:
		return "unknown"
	}
}

// isBroadcastShape reports whether a type uses the Broadcast body
// layout (timestamp + lat/lon + text) as opposed to the Directed body
// layout (targetHash + timestamp + text). ack carries no behavior of
// its own (acknowledgements are a non-goal, §1) but still needs a
// concrete shape to round-trip through the codec, so it is treated as
// broadcast-shaped like message/sos.
func isBroadcastShape(t FrameType) bool {
	switch t {
	case FrameAnnounce, FrameMessage, FrameSOS, FrameAck:
		return true
	case FrameDirect, FrameFriendRequest:
		return false
	default:
		return false
	}
}

// DefaultTTL is the hop budget assigned to locally originated frames
// (spec §4.1).
const DefaultTTL = 5

// Frame is the decoded, in-memory form of a single on-wire mesh packet.
// Both frame families (broadcast and directed) share this struct; which
// fields are meaningful depends on Type (see isBroadcastShape).
type Frame struct {
	Type       FrameType
	TTL        uint8
	MsgIDHash  uint16
	SenderHash NodeHash

	// Broadcast body (announce, message, sos, ack).
	Timestamp uint32
	Latitude  float32 // NaN = absent
	Longitude float32 // NaN = absent

	// Directed body (direct, friendRequest).
	TargetHash NodeHash

	// Shared text payload, already truncated/encoded per §4.1 size limits.
	Text string
}

// HopCount is "hops already traversed" (spec GLOSSARY): 5 - ttl, using
// the fixed origination TTL of 5 regardless of the frame's current TTL
// field, per spec §4.4/§4.5.
func HopCount(ttl uint8) int {
	return DefaultTTL - int(ttl)
}

// MeshMessage is a classified frame ready for delivery to subscribers
// (spec §3).
type MeshMessage struct {
	ID               MessageID
	Type             FrameType
	SenderHash       NodeHash
	Nickname         string
	Timestamp        time.Time
	Content          string
	HopCount         int
	WasRelayed       bool
	Latitude         *float64
	Longitude        *float64
	TargetFriendCode string // set only for directed frames delivered locally
}

// PeerSeenEvent reports that a peer's liveness state advanced.
type PeerSeenEvent struct {
	Hash NodeHash
	Peer Peer
}

// FriendCodeDiscoveryEvent is emitted whenever an announce frame reveals
// the (senderHash, friendCode) association (spec §4.4, §4.9).
type FriendCodeDiscoveryEvent struct {
	SenderHash NodeHash
	FriendCode string
}

// FriendRequestEvent is emitted when a friendRequest frame targets this
// node (spec §4.6).
type FriendRequestEvent struct {
	SenderHash NodeHash
	Nickname   string
	FriendCode string
}

// RawPacketEvent is the diagnostic record emitted for every inbound
// frame, decoded or not (spec §4.9).
type RawPacketEvent struct {
	Hex         string
	Frame       *Frame
	IsDuplicate bool
	IsFromSelf  bool
	DecodeErr   error
}
