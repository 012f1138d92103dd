package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// refreshEntropyBytes is the amount of CSPRNG output in one refresh token
// (384 bits, hex encoded to 96 characters).
const refreshEntropyBytes = 48

type refreshTokens struct {
	pepper []byte
}

// NewRefreshToken returns a fresh opaque refresh token drawn directly from
// crypto/rand. Tokens are independent of each other.
func (r refreshTokens) NewRefreshToken() (string, error) {
	buf := make([]byte, refreshEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashRefreshToken returns hex(SHA-256(raw + pepper)). The digest is the
// storage and lookup key of a refresh token record.
func (r refreshTokens) HashRefreshToken(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	h.Write(r.pepper)
	return hex.EncodeToString(h.Sum(nil))
}
