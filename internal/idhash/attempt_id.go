package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAttemptID computes a deterministic buy attempt ID using SHA256.
// Formula: SHA256(mint|amount|triggered_at|seq)
// seq is the attempt's ordinal for the mint; two attempts triggered in the
// same millisecond differ only by it.
// Returns hex-encoded hash (64 characters).
func ComputeAttemptID(mint string, amount uint64, triggeredAt int64, seq int) string {
	data := fmt.Sprintf("%s|%d|%d|%d", mint, amount, triggeredAt, seq)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSnapshotID computes a deterministic market snapshot ID.
// Formula: SHA256(mint|timestamp|market_cap)
func ComputeSnapshotID(mint string, timestamp int64, marketCap uint64) string {
	data := fmt.Sprintf("%s|%d|%d", mint, timestamp, marketCap)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
