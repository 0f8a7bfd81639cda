package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short stable identifier for s so logs can correlate
// repeated inputs without recording them.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
