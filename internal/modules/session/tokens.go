package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// generateOpaqueRefreshToken returns a 256-bit random token and its
// peppered hash. The token shares no key material with access tokens:
// leaking one never discloses the other.
func generateOpaqueRefreshToken(pepper string) (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	hash = hashTokenWithPepper(raw, pepper)
	return raw, hash, nil
}

func hashTokenWithPepper(raw, pepper string) string {
	sum := sha256.Sum256([]byte(raw + pepper))
	return hex.EncodeToString(sum[:])
}
