package idhash

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"
)

// ComputeComboID computes a short deterministic id for a predicate combination.
// The names are joined in the given order, so callers pass them in
// enumeration order. Returns the base58 encoding of the first 8 hash bytes.
func ComputeComboID(predicates []string) string {
	hash := sha256.Sum256([]byte(strings.Join(predicates, "|")))
	return base58.Encode(hash[:8])
}
