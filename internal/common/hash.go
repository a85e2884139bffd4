package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint hashes parts joined with "|" into a lowercase hex SHA-256. It
// names idempotency keys and courier webhook events.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
