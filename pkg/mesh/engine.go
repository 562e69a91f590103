package mesh

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// noCoordinate marks an absent latitude/longitude, encoded as IEEE754
// NaN per spec §4.1.
var noCoordinate = float32(math.NaN())

// Config configures one Engine instance. NodeID is assumed already
// resolved (loaded-or-created) by the surrounding application; THE CORE
// never generates or persists it directly (spec §6.3 is an external
// collaborator).
type Config struct {
	NodeID          string
	Nickname        string
	BroadcastWindow time.Duration // 0 = DefaultBroadcastWindow
	ScanMode        ScanMode
}

// Engine is the mesh protocol engine (spec §1-§5): the single owner of
// every cache, queue, and stream THE CORE maintains. One Engine per
// running node, instantiated once at the application root and never
// duplicated, per spec §9 "Singletons → owned engine."
type Engine struct {
	ownHash NodeHash

	nicknameMu sync.RWMutex
	nickname   string

	radio   Radio
	metrics Recorder
	store   Store

	events      *EventStreams
	peers       *PeerTable
	dedup       *DedupCache
	relayStamps *RelayTimestampCache
	announcer   *announcer
	scanner     *scanner
	advertiser  *Advertiser
	relayQueue  *relayQueue
	relayProc   *relayProcessor
	friendReqs  *friendRequestRetryQueue
	msgLog      *MessageLog
}

// NewEngine wires every component together. radio, metrics, and store
// are external collaborators (spec §6); metrics and store may be nil.
func NewEngine(cfg Config, radio Radio, metrics Recorder, store Store) *Engine {
	events := newEventStreams()
	adv := newAdvertiser(radio, metrics, events.errors, cfg.BroadcastWindow)
	rq := newRelayQueue()

	e := &Engine{
		ownHash:     NodeHashOf(cfg.NodeID),
		nickname:    cfg.Nickname,
		radio:       radio,
		metrics:     metrics,
		store:       store,
		events:      events,
		peers:       newPeerTable(),
		dedup:       newDedupCache(),
		relayStamps: newRelayTimestampCache(),
		announcer:   newAnnouncer(),
		scanner:     newScanner(radio, metrics, cfg.ScanMode),
		advertiser:  adv,
		relayQueue:  rq,
		relayProc:   newRelayProcessor(rq, adv, metrics),
		friendReqs:  newFriendRequestRetryQueue(),
		msgLog:      NewMessageLog(),
	}
	return e
}

// Events exposes every observable stream (spec §4.9).
func (e *Engine) Events() *EventStreams { return e.events }

// Peers exposes the peer table for status display.
func (e *Engine) Peers() *PeerTable { return e.peers }

// MyFriendCode returns this node's own FriendCode (spec §9: the narrow
// interface a FriendService consumes without holding a reference back
// into the engine).
func (e *Engine) MyFriendCode() string { return e.ownHash.FriendCode() }

// Nickname returns the current display nickname.
func (e *Engine) Nickname() string {
	e.nicknameMu.RLock()
	defer e.nicknameMu.RUnlock()
	return e.nickname
}

// SetNickname updates the nickname taking effect on the next
// announcement, persisting it if a Store is configured.
func (e *Engine) SetNickname(nickname string) error {
	e.nicknameMu.Lock()
	e.nickname = nickname
	e.nicknameMu.Unlock()
	if e.store == nil {
		return nil
	}
	return e.store.SetString(StoreKeyNickname, nickname)
}

// Run starts every background loop (scan, relay processing, outbound
// announce timer, friend-request retry ticker, cache maintenance) and
// blocks until ctx is canceled. Every loop returns nil, so Run returns
// nil once they have all stopped. Spec §5
// calls for single-loop-equivalent serialization; each loop below only
// mutates state it privately owns or state that is itself internally
// synchronized, so running them as separate goroutines supervised by a
// single errgroup satisfies that model without a single shared lock.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.scanner.Run(gctx, e.handleScanResult)
		return nil
	})
	g.Go(func() error {
		e.relayProc.Run(gctx)
		return nil
	})
	g.Go(func() error {
		e.announcer.RunOutbound(gctx, e.announcePayload, e.sendAnnounce)
		return nil
	})
	g.Go(func() error {
		e.friendReqs.Run(gctx, e.retransmitFriendRequest)
		return nil
	})
	g.Go(func() error {
		runMaintenance(gctx, maintenanceDeps{
			dedup:        e.dedup,
			relayStamps:  e.relayStamps,
			announceCool: e.announcer.cooldown,
			peers:        e.peers,
			log:          e.msgLog,
			metrics:      e.metrics,
		})
		return nil
	})

	return g.Wait()
}

// handleScanResult is the Radio collaborator's callback for every
// manufacturer-id-matched advertisement (spec §4.8).
func (e *Engine) handleScanResult(r ScanResult) {
	payload, ok := ExtractMeshPayload(r.ManufacturerData)
	if !ok {
		return
	}
	e.handleInbound(payload, time.Now())
}

// handleInbound is the scan→classify→dedup→dispatch→relay pipeline
// (spec §4.2 steps 1-6).
func (e *Engine) handleInbound(raw []byte, now time.Time) {
	f, decodeErr := Decode(raw)

	var isDuplicate, isFromSelf bool
	var framePtr *Frame
	var decodeErrOut error = decodeErr

	if decodeErr != nil {
		if _, malformedText := decodeErr.(MalformedUTF8Error); !malformedText {
			if e.metrics != nil {
				e.metrics.IncDropped("decode_error")
			}
			e.events.rawPackets.Publish(RawPacketEvent{
				Hex:       hex.EncodeToString(raw),
				Frame:     nil,
				DecodeErr: decodeErr,
			})
			return
		}
		// Malformed UTF-8 is a surfaced-but-usable decode (spec §4.1): fall
		// through to the normal pipeline with the lossily-decoded frame.
	}

	msgID := MessageID(hashPrefix("h:", f.MsgIDHash))
	isFromSelf = f.SenderHash == e.ownHash

	pass, isNew, wasKnown := e.dedup.CheckAndRecord(msgID, f.TTL, now)
	isDuplicate = wasKnown
	framePtr = &f

	e.events.rawPackets.Publish(RawPacketEvent{
		Hex:         hex.EncodeToString(raw),
		Frame:       framePtr,
		IsDuplicate: isDuplicate,
		IsFromSelf:  isFromSelf,
		DecodeErr:   decodeErrOut,
	})

	if !pass {
		if e.metrics != nil {
			e.metrics.IncDropped("dedup")
		}
		return
	}
	if isFromSelf {
		if e.metrics != nil {
			e.metrics.IncDropped("self_origin")
		}
		return
	}
	if e.metrics != nil {
		e.metrics.IncDecoded(f.Type.String())
	}

	var shouldRelay bool
	switch f.Type {
	case FrameAnnounce:
		shouldRelay = e.handleAnnounce(f, now)
	case FrameMessage, FrameSOS:
		shouldRelay = e.handleBroadcastMessage(f, now, isNew)
	case FrameDirect, FrameFriendRequest:
		shouldRelay = e.handleDirected(f, now, isNew)
	default:
		return
	}

	if shouldRelay {
		e.maybeRelay(f, msgID, now)
	}
}

func (e *Engine) handleAnnounce(f Frame, now time.Time) bool {
	decision := e.announcer.HandleInbound(f, now)
	if !decision.Accepted {
		return false
	}
	peer := e.peers.UpdateAnnounce(f.SenderHash, now, decision.Nickname, decision.FriendCode)
	e.events.peerSeen.Publish(PeerSeenEvent{Hash: f.SenderHash, Peer: peer})
	if decision.FriendCode != "" {
		e.events.friendCodeFound.Publish(FriendCodeDiscoveryEvent{SenderHash: f.SenderHash, FriendCode: decision.FriendCode})
	}
	return decision.ShouldRelay
}

func (e *Engine) handleBroadcastMessage(f Frame, now time.Time, isNew bool) bool {
	peer, _ := e.peers.Touch(f.SenderHash, now)
	e.events.peerSeen.Publish(PeerSeenEvent{Hash: f.SenderHash, Peer: peer})

	if isNew {
		msg := e.toMeshMessage(f, peer.Nickname)
		e.events.messages.Publish(msg)
		e.msgLog.Append(msg, now)
	}
	return f.TTL > 0
}

func (e *Engine) handleDirected(f Frame, now time.Time, isNew bool) bool {
	peer, _ := e.peers.Touch(f.SenderHash, now)
	e.events.peerSeen.Publish(PeerSeenEvent{Hash: f.SenderHash, Peer: peer})

	dec := HandleDirectedInbound(f, e.ownHash)
	if dec.TargetMatches && isNew {
		switch f.Type {
		case FrameFriendRequest:
			nickname, friendCode := ParseFriendRequestText(f.Text)
			e.events.friendRequests.Publish(FriendRequestEvent{SenderHash: f.SenderHash, Nickname: nickname, FriendCode: friendCode})
			if friendCode != "" {
				e.friendReqs.Cancel(friendCode)
			}
		case FrameDirect:
			msg := e.toMeshMessage(f, peer.Nickname)
			msg.TargetFriendCode = f.TargetHash.FriendCode()
			e.events.directedMessages.Publish(msg)
		}
	}
	return dec.ShouldRelay
}

func (e *Engine) toMeshMessage(f Frame, nickname string) MeshMessage {
	hop := HopCount(f.TTL)
	msg := MeshMessage{
		ID:         MessageID(hashPrefix("h:", f.MsgIDHash)),
		Type:       f.Type,
		SenderHash: f.SenderHash,
		Nickname:   nickname,
		Timestamp:  time.Unix(int64(f.Timestamp), 0).UTC(),
		Content:    f.Text,
		HopCount:   hop,
		WasRelayed: hop > 0,
	}
	if !math.IsNaN(float64(f.Latitude)) {
		v := float64(f.Latitude)
		msg.Latitude = &v
	}
	if !math.IsNaN(float64(f.Longitude)) {
		v := float64(f.Longitude)
		msg.Longitude = &v
	}
	return msg
}

// maybeRelay applies the per-message relay spacing (spec §4.2) and
// enqueues a TTL-decremented copy (I3).
func (e *Engine) maybeRelay(f Frame, msgID MessageID, now time.Time) {
	if f.TTL == 0 {
		return
	}
	if !e.relayStamps.AllowAndRecord(msgID, now) {
		return
	}
	relayed := f
	relayed.TTL = f.TTL - 1
	encoded, err := Encode(relayed)
	if err != nil {
		e.publishError(fmt.Sprintf("relay encode failed: %v", err))
		return
	}
	e.relayQueue.Enqueue(encoded)
	e.peers.IncRelay(f.SenderHash)
	if e.metrics != nil {
		e.metrics.IncRelayed(f.Type.String())
	}
}

func (e *Engine) publishError(msg string) {
	slog.Warn("mesh: " + msg)
	e.events.errors.Publish(msg)
}

// originate builds, encodes, and enqueues a locally-created frame at
// DefaultTTL. Locally originated frames bypass dedup/relay-spacing —
// they have never been seen before by definition.
func (e *Engine) originate(f Frame) error {
	f.SenderHash = e.ownHash
	f.TTL = DefaultTTL
	encoded, err := Encode(f)
	if err != nil {
		return err
	}
	e.relayQueue.Enqueue(encoded)
	return nil
}

func newMessageIDHash() uint16 {
	return Hash16(uuid.NewString())
}

func floatOrNaN(v *float64) float32 {
	if v == nil {
		return noCoordinate
	}
	return float32(*v)
}

// SendMessage originates a broadcast chat message (spec §4.5).
func (e *Engine) SendMessage(text string, lat, lon *float64) error {
	return e.originate(Frame{
		Type:      FrameMessage,
		MsgIDHash: newMessageIDHash(),
		Timestamp: uint32(time.Now().Unix()),
		Latitude:  floatOrNaN(lat),
		Longitude: floatOrNaN(lon),
		Text:      text,
	})
}

// SendSOS originates a broadcast SOS beacon (spec §4.5).
func (e *Engine) SendSOS(text string, lat, lon *float64) error {
	return e.originate(Frame{
		Type:      FrameSOS,
		MsgIDHash: newMessageIDHash(),
		Timestamp: uint32(time.Now().Unix()),
		Latitude:  floatOrNaN(lat),
		Longitude: floatOrNaN(lon),
		Text:      text,
	})
}

// SendDirect originates a directed message to targetFriendCode (spec
// §4.6).
func (e *Engine) SendDirect(targetFriendCode, text string) error {
	target, err := ParseFriendCode(targetFriendCode)
	if err != nil {
		return err
	}
	return e.originate(Frame{
		Type:       FrameDirect,
		MsgIDHash:  newMessageIDHash(),
		Timestamp:  uint32(time.Now().Unix()),
		TargetHash: target,
		Text:       text,
	})
}

// AddFriend sends an immediate friendRequest to friendCode and
// schedules the retry ticker to resend it (spec §4.6).
func (e *Engine) AddFriend(friendCode string) error {
	target, err := ParseFriendCode(friendCode)
	if err != nil {
		return err
	}
	if err := e.originate(Frame{
		Type:       FrameFriendRequest,
		MsgIDHash:  newMessageIDHash(),
		Timestamp:  uint32(time.Now().Unix()),
		TargetHash: target,
		Text:       e.friendRequestText(),
	}); err != nil {
		return err
	}
	e.friendReqs.Add(friendCode, friendRequestTotalSends-1)
	return nil
}

func (e *Engine) friendRequestText() string {
	return e.Nickname() + "|" + e.ownHash.FriendCode()
}

func (e *Engine) retransmitFriendRequest(ctx context.Context, friendCode string) {
	target, err := ParseFriendCode(friendCode)
	if err != nil {
		return
	}
	if err := e.originate(Frame{
		Type:       FrameFriendRequest,
		MsgIDHash:  newMessageIDHash(),
		Timestamp:  uint32(time.Now().Unix()),
		TargetHash: target,
		Text:       e.friendRequestText(),
	}); err != nil {
		e.publishError(fmt.Sprintf("friend-request retry failed: %v", err))
	}
}

func (e *Engine) announcePayload() string {
	return e.Nickname() + "|" + e.ownHash.FriendCode()
}

func (e *Engine) sendAnnounce(ctx context.Context, text string) {
	if err := e.originate(Frame{
		Type:      FrameAnnounce,
		MsgIDHash: newMessageIDHash(),
		Timestamp: uint32(time.Now().Unix()),
		Latitude:  noCoordinate,
		Longitude: noCoordinate,
		Text:      text,
	}); err != nil {
		e.publishError(fmt.Sprintf("announce send failed: %v", err))
	}
}
