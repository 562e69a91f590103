// Package identity resolves and persists the local node's NodeId and
// display nickname (spec.md §3, §6.3), the surrounding application's
// side of mesh.Store.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"

	"github.com/Hardikr439/BLE-communication/pkg/mesh"
)

// CheckKeyFilePermissions verifies that a persisted identity file is not
// readable by group or others.
func CheckKeyFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil // Windows file permissions work differently
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat identity file %s: %w", path, err)
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("identity file %s has insecure permissions %04o (expected 0600); fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// generateNodeID returns a random 8-hex-character string (spec.md §3:
// "process-wide 8-hex-character string, randomly generated once").
func generateNodeID() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate node id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// LoadOrCreateNodeID loads NodeId from store under mesh.StoreKeyPeerID,
// generating and persisting a new one if absent. Grounded on the
// teacher's LoadOrCreateIdentity load-from-file-or-generate shape,
// swapped from an Ed25519 keypair to a random 32-bit hex id.
func LoadOrCreateNodeID(store mesh.Store) (string, error) {
	if id, ok := store.GetString(mesh.StoreKeyPeerID); ok && id != "" {
		return id, nil
	}
	id, err := generateNodeID()
	if err != nil {
		return "", err
	}
	if err := store.SetString(mesh.StoreKeyPeerID, id); err != nil {
		return "", fmt.Errorf("failed to save node id: %w", err)
	}
	return id, nil
}

// LoadNickname loads the persisted nickname from store, falling back to
// fallback (e.g. "Node-"+friendCode) if none has been set yet.
func LoadNickname(store mesh.Store, fallback string) string {
	if nick, ok := store.GetString(mesh.StoreKeyNickname); ok && nick != "" {
		return nick
	}
	return fallback
}
