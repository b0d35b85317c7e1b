package types

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash is a 32-byte Blake2b digest, the project's wire identifier for
// headers, bodies and justifications.
type Hash [32]byte

// ZeroHash is the hash value used for "no parent" / "no vote" placeholders.
var ZeroHash Hash

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Compare returns -1, 0 or 1 if h sorts before, equal to, or after other,
// using plain lexicographic byte order. Used to decide equivocation proof
// canonicalization (header1Hash < header2Hash) and deterministic tie-breaks.
func (h Hash) Compare(other Hash) int {
	for i := range h {
		if h[i] < other[i] {
			return -1
		}
		if h[i] > other[i] {
			return 1
		}
	}
	return 0
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 4 bytes hex-encoded, for log lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:4])
}

// HashBytes returns the Blake2b-256 digest of data.
func HashBytes(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// HashOfHashes combines two hashes, for building small parent/child link
// digests without re-hashing a whole structure.
func HashOfHashes(a, b Hash) Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return HashBytes(buf)
}
