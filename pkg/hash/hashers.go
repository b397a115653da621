package hash

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"

	"pmhash/pkg/config"
)

// Hasher maps a key to the 64-bit value whose low bits select a catalog index.
type Hasher func(key uint64) uint64

// Hasher ids as stored in the metadata record.
const (
	hasherIdentity uint64 = iota
	hasherXxHash
	hasherMurmur3
)

// getHash applies a byte hasher to the little-endian encoding of key.
func getHash(hasher func(b []byte) uint64, key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return hasher(buf[:])
}

// IdentityHasher uses the key itself, so index i holds keys whose low bits equal i.
func IdentityHasher(key uint64) uint64 {
	return key
}

// XxHasher returns the xxHash hash of the given key.
func XxHasher(key uint64) uint64 {
	return getHash(xxhash.Sum64, key)
}

// MurmurHasher returns the MurmurHash3 hash of the given key.
func MurmurHasher(key uint64) uint64 {
	return getHash(murmur3.Sum64, key)
}

// lookupHasher resolves a configured hasher name.
func lookupHasher(name string) (Hasher, uint64, error) {
	switch name {
	case config.HasherIdentity, "":
		return IdentityHasher, hasherIdentity, nil
	case config.HasherXxHash:
		return XxHasher, hasherXxHash, nil
	case config.HasherMurmur3:
		return MurmurHasher, hasherMurmur3, nil
	}
	return nil, 0, fmt.Errorf("unknown hasher %q", name)
}

func hasherName(id uint64) string {
	switch id {
	case hasherIdentity:
		return config.HasherIdentity
	case hasherXxHash:
		return config.HasherXxHash
	case hasherMurmur3:
		return config.HasherMurmur3
	}
	return fmt.Sprintf("hasher(%d)", id)
}

// lowMask returns a mask of the low depth bits.
func lowMask(depth uint64) uint64 {
	return 1<<depth - 1
}
