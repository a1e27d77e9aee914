package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRequestHash fingerprints a mutating API request so a replayed
// Idempotency-Key can be matched against the request that first used it.
// Formula: SHA256(method|path|caller|SHA256(body))
// Returns hex-encoded hash (64 characters).
func ComputeRequestHash(method, path, caller string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	data := fmt.Sprintf("%s|%s|%s|%s",
		method,
		path,
		caller,
		hex.EncodeToString(bodyHash[:]),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
