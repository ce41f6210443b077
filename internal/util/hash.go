package util

import (
	"crypto/sha256"
	"encoding/hex"
)

func SHA256Hex(b []byte) string {
	x := sha256.Sum256(b)
	return hex.EncodeToString(x[:])
}

// ShortHash is the first 12 hex characters of SHA256Hex, used for prompt
// fingerprints in the call audit.
func ShortHash(s string) string {
	return SHA256Hex([]byte(s))[:12]
}
