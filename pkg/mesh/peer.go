package mesh

import (
	"sync"
	"time"
)

// onlineWindow is how recently a peer must have been seen to count as
// online (spec I4).
const onlineWindow = 60 * time.Second

// Peer tracks everything observed about one remote node (spec §3). It
// is a plain value snapshot; mutation happens only inside PeerTable
// under its mutex, mirroring the teacher's ManagedPeer/PeerManager split
// in pkg/p2pnet/peermanager.go.
type Peer struct {
	Hash       NodeHash
	Nickname   string
	FriendCode string // empty until learned via an announce
	LastSeen   time.Time
	RecvCount  int
	RelayCount int
}

// Online reports whether the peer was seen within the last 60s (I4).
func (p Peer) Online(now time.Time) bool {
	return now.Sub(p.LastSeen) < onlineWindow
}

// PeerInfo is a read-only snapshot for status display and API
// serialization, matching the teacher's ManagedPeerInfo split between
// internal mutable state and an exported view.
type PeerInfo struct {
	Hash       string `json:"hash"`
	Nickname   string `json:"nickname,omitempty"`
	FriendCode string `json:"friend_code,omitempty"`
	LastSeen   string `json:"last_seen"`
	Online     bool   `json:"online"`
	RecvCount  int    `json:"recv_count"`
	RelayCount int    `json:"relay_count"`
}

// PeerTable maps NodeHash to observed Peer state (spec §3).
type PeerTable struct {
	mu    sync.RWMutex
	peers map[NodeHash]*Peer
}

func newPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[NodeHash]*Peer)}
}

// Touch records a sighting of hash at now, creating the Peer if this is
// the first sighting, and returns the updated snapshot plus whether the
// peer was newly created.
func (t *PeerTable) Touch(hash NodeHash, now time.Time) (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[hash]
	if !ok {
		p = &Peer{Hash: hash}
		t.peers[hash] = p
	}
	p.LastSeen = now
	p.RecvCount++
	return *p, !ok
}

// UpdateAnnounce applies nickname/friendCode learned from an announce or
// friendRequest frame.
func (t *PeerTable) UpdateAnnounce(hash NodeHash, now time.Time, nickname, friendCode string) Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[hash]
	if !ok {
		p = &Peer{Hash: hash}
		t.peers[hash] = p
	}
	p.LastSeen = now
	p.Nickname = nickname
	if friendCode != "" {
		p.FriendCode = friendCode
	}
	return *p
}

// IncRelay records that a frame originating/forwarded by hash was
// relayed by this node.
func (t *PeerTable) IncRelay(hash NodeHash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[hash]; ok {
		p.RelayCount++
	}
}

// Get returns a snapshot of a single peer, if known.
func (t *PeerTable) Get(hash NodeHash) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[hash]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Snapshot returns every known peer.
func (t *PeerTable) Snapshot() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// FindByFriendCode returns the NodeHash of a peer advertising the given
// FriendCode. The engine's own friend-request paths do not use it: they
// parse the code with ParseFriendCode and cancel retries by code.
func (t *PeerTable) FindByFriendCode(code string) (NodeHash, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for hash, p := range t.peers {
		if p.FriendCode == code {
			return hash, true
		}
	}
	return 0, false
}

// PruneOffline evicts peers not seen within onlineWindow (spec §4.7).
func (t *PeerTable) PruneOffline(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for hash, p := range t.peers {
		if now.Sub(p.LastSeen) >= onlineWindow {
			delete(t.peers, hash)
			removed++
		}
	}
	return removed
}

func toPeerInfo(p Peer, now time.Time) PeerInfo {
	return PeerInfo{
		Hash:       p.Hash.FriendCode(),
		Nickname:   p.Nickname,
		FriendCode: p.FriendCode,
		LastSeen:   p.LastSeen.Format(time.RFC3339),
		Online:     p.Online(now),
		RecvCount:  p.RecvCount,
		RelayCount: p.RelayCount,
	}
}
