package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor
const DefaultHashCost = 10

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

// PasswordHasher provides salted one-way password hashing
type PasswordHasher interface {
	// Hash returns a salted hash; the salt is embedded in the result
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A malformed hash is a mismatch.
	Verify(password, hash string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost, or DefaultHashCost if cost is zero
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultHashCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash hashes a password with a fresh random salt
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares password against a bcrypt hash
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
