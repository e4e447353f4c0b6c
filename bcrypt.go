package auth

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor for stored hashes
const DefaultPasswordCost = 10

// maxPasswordBytes is the bcrypt input limit
const maxPasswordBytes = 72

// BcryptHasher implements PasswordHasher using bcrypt
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher returns a hasher with the given cost. A cost outside the
// bcrypt range falls back to the build default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the work factor used by Hash
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash will generate a password hash
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", ErrInternal.Wrap(err)
	}
	return string(out), nil
}

// Verify will validate the given cleartext password matches the hashed password
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, ErrCorruptHash.Wrap(err)
}

// RandomPasswordHash hashes a random secret. It never matches user input and
// is used to keep the unknown-account login path as slow as the known one.
func RandomPasswordHash(hasher PasswordHasher) (string, error) {
	return hasher.Hash(uuid.NewString())
}
