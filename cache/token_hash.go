package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a raw token so cache keys are short and the token itself
// is never kept in memory as a key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
