package memcache

import (
	"hash/crc32"

	"github.com/pior/memcache-text/internal"
	"github.com/zeebo/xxh3"
)

// HashFunc maps a key to a 64-bit hash.
type HashFunc func(key string) uint64

// SlotSelector reduces a key hash to a slot index in [0, slots).
type SlotSelector func(hash uint64, slots int) int

// DefaultHash is xxh3, fast and well distributed.
func DefaultHash(key string) uint64 {
	return xxh3.HashString(key)
}

// CRC32Hash reproduces the hash used by libmemcache-based clients
// ((crc32(key) >> 16) & 0x7fff) so that a pool shared with them places keys
// on the same servers, given the same slot selection.
func CRC32Hash(key string) uint64 {
	return uint64((crc32.ChecksumIEEE([]byte(key)) >> 16) & 0x7fff)
}

// ModuloSlot selects hash % slots.
func ModuloSlot(hash uint64, slots int) int {
	if slots <= 0 {
		return 0
	}
	return int(hash % uint64(slots))
}

// JumpSlot selects a slot with Jump consistent hashing, which moves fewer keys
// when slots are appended to the end of the table.
func JumpSlot(hash uint64, slots int) int {
	return internal.Jump(hash, slots)
}
