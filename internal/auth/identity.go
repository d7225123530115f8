package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// IdentityKind distinguishes how a caller was identified.
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"
	IdentityDevice IdentityKind = "device"
	IdentityIP     IdentityKind = "ip"
)

// IdentityHasher turns raw caller identifiers (user ids, device hashes,
// addresses) into opaque keyed digests. Only digests are stored, so the
// signal store never holds a raw identifier.
type IdentityHasher struct {
	key []byte
}

// NewIdentityHasher creates a hasher keyed by salt. Salts longer than the
// BLAKE2b key limit are compressed first.
func NewIdentityHasher(salt string) *IdentityHasher {
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &IdentityHasher{key: key}
}

// Hash returns the hex digest of kind and raw.
func (h *IdentityHasher) Hash(kind IdentityKind, raw string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Only reachable with a key over 64 bytes, which NewIdentityHasher prevents.
		panic(err)
	}
	mac.Write([]byte(kind))
	mac.Write([]byte{0})
	mac.Write([]byte(raw))
	return string(kind) + ":" + hex.EncodeToString(mac.Sum(nil))[:32]
}
