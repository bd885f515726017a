package idhash

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// ComputeFileDigest returns the base58-encoded SHA256 of a feed file's content.
// Identical content yields the same digest regardless of file name.
func ComputeFileDigest(data []byte) string {
	hash := sha256.Sum256(data)
	return base58.Encode(hash[:])
}
