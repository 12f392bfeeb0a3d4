package trace

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeTraceHash hashes an already-canonical encoding (e.g. from
// BuildTrace.CanonicalJSON) with sha256, hex-encoded.
func ComputeTraceHash(canonicalEncoding []byte) string {
	if len(canonicalEncoding) == 0 {
		return ""
	}
	sum := sha256.Sum256(canonicalEncoding)
	return hex.EncodeToString(sum[:])
}
