package utils

import "golang.org/x/crypto/bcrypt"

// Hasher turns a plaintext secret into a storable credential and checks
// a secret against it.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost when cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

// Hash hashes a given password using bcrypt.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	return string(bytes), err
}

// Verify compares a plain password with its hashed version.
func (h *BcryptHasher) Verify(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
