package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentDigest returns a short stable fingerprint of s, safe to log in place
// of the content itself.
func ContentDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
