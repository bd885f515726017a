package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"option-replay-lab/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id.
// Formula: SHA256(resolver_id|tag|strike|option_type|entry_time_ms)
// Returns the base58-encoded hash (43-44 characters).
func ComputeTradeID(
	resolverID string,
	tag string,
	key domain.InstrumentKey,
	entryTimeMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%.2f|%s|%d",
		resolverID,
		tag,
		key.Strike,
		string(key.Type),
		entryTimeMs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
