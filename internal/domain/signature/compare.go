package signature

import (
	"crypto/sha256"
	"crypto/subtle"
)

// ConstantTimeEqual reports whether a and b are equal in time that depends
// neither on the position of the first differing byte nor on how much the
// lengths differ. Both inputs are reduced to SHA-256 digests so the byte loop
// always runs over 32 pairs; the length check is folded in without branching.
func ConstantTimeEqual(a, b []byte) bool {
	da := sha256.Sum256(a)
	db := sha256.Sum256(b)
	acc := xorAccumulate(&da, &db)
	sameLen := subtle.ConstantTimeEq(int32(len(a)), int32(len(b))) //nolint:gosec // lengths of header-sized inputs
	return subtle.ConstantTimeByteEq(acc, 0)&sameLen == 1
}

// xorAccumulate ORs together the XOR of every byte pair. It never returns
// early; the result is zero only when all pairs match.
func xorAccumulate(a, b *[sha256.Size]byte) byte {
	var acc byte
	for i := 0; i < sha256.Size; i++ {
		acc |= a[i] ^ b[i]
	}
	return acc
}
