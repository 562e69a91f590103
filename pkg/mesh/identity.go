package mesh

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeHashOf derives the 16-bit NodeHash of a NodeId string (spec §3).
func NodeHashOf(nodeID string) NodeHash {
	return NodeHash(Hash16(nodeID))
}

// FriendCode renders a NodeHash as its 4-uppercase-hex FriendCode (spec
// §3, §4.1): "the FriendCode is exactly the 4-uppercase-hex rendering
// of a node's NodeHash".
func (h NodeHash) FriendCode() string {
	return fmt.Sprintf("%04X", uint16(h))
}

// String renders the hash the same way FriendCode does, matching how
// the teacher's ManagedPeerInfo renders identifiers for display.
func (h NodeHash) String() string {
	return h.FriendCode()
}

// ParseFriendCode parses a 4-hex-digit FriendCode back into a NodeHash.
// Per spec §4.1, hashOf(NodeId) == parseHex(FriendCode of that node), so
// this is also how a directed frame's targetHash is compared against a
// locally known FriendCode.
func ParseFriendCode(code string) (NodeHash, error) {
	code = strings.TrimSpace(code)
	if len(code) != 4 {
		return 0, ErrBadFriendCode
	}
	v, err := strconv.ParseUint(code, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadFriendCode, err)
	}
	return NodeHash(v), nil
}

func formatHex4(v uint16) string {
	return fmt.Sprintf("%04x", v)
}
