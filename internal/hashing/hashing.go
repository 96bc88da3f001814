// Package hashing computes the stable 64-bit digests the analysis model
// uses for API hashes, extra hashes, and name hashes.
//
// blake2b is a fast, collision-resistant content digest; the low 64 bits
// of a blake2b-256 sum are stable across runs and platforms, which is all
// the hash-comparison machinery needs.
package hashing

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Hash64 returns a stable 64-bit digest of data, taken from the low 8 bytes
// of a blake2b-256 sum. Equal inputs always produce equal hashes; this is a
// content fingerprint, not a security boundary.
func Hash64(data []byte) uint64 {
	sum := blake2b.Sum256(data)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Combine folds a sequence of 64-bit hashes into one, order-sensitive. Used
// to build a class's publicHash/extraHash from the hashes of its members.
func Combine(parts ...uint64) uint64 {
	var buf [8]byte
	h, err := blake2b.New(8, nil)
	if err != nil {
		// blake2b.New(8, nil) only fails for an invalid key or out-of-range
		// size; both are compile-time constants here.
		panic(err)
	}
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], p)
		_, _ = h.Write(buf[:])
	}
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// CombineUnordered folds a set of 64-bit hashes into one value that does not
// depend on iteration order. Used for the sealed-children pattern-match
// name hash, where the digest must not depend on the order children are
// listed in.
func CombineUnordered(parts ...uint64) uint64 {
	var acc uint64
	for _, p := range parts {
		// Each part is mixed on its own (shift+xor+multiply) and the results
		// are XORed together, so the result is independent of the order
		// parts were folded in.
		p ^= p >> 33
		p *= 0xff51afd7ed558ccd
		p ^= p >> 33
		acc ^= p
	}
	return acc
}
