package random

import (
	"crypto/rand"
	"encoding/base64"
)

// Random provides random tokens that can be mocked for testing
type Random interface {
	// Token returns n random bytes encoded as unpadded URL-safe base64
	Token(n int) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Token returns a cryptographically random token
func (r *CryptoRandom) Token(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
