package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeResultID computes a deterministic result_id for a snapshot.
// Formula: SHA256(simulation_id|seq|timestamp_ms), hex-encoded (64 characters).
func ComputeResultID(simulationID string, seq int, timestampMs int64) string {
	data := fmt.Sprintf("%s|%d|%d", simulationID, seq, timestampMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
