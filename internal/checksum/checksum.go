// Package checksum computes content digests used to detect unchanged files
// on import.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString is Sum for text already held as a string, such as note content.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Equal reports whether data hashes to the digest sum.
func Equal(data []byte, sum string) bool {
	return Sum(data) == sum
}
