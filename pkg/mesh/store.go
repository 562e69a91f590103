package mesh

// Store is the persistence collaborator (spec §6.3). THE CORE treats
// it as an opaque key/value object; it is implemented by
// internal/store and owned by the surrounding application.
type Store interface {
	GetString(key string) (string, bool)
	SetString(key string, value string) error
	Remove(key string) error
}

// Well-known persistence keys (spec §6.3).
const (
	StoreKeyPeerID   = "mesh_peer_id"
	StoreKeyNickname = "mesh_nickname"
)
