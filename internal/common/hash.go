package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests a value for logging. The callback token is a shared
// secret, so only its digest ever reaches a log line.
func Sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
