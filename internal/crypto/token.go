package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken maps a bearer token to a stable key. The token cannot be
// recovered from it.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
