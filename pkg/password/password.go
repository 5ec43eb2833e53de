package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes is the longest password bcrypt can hash.
const MaxBytes = 72

// TooLong reports whether plain exceeds MaxBytes. The limit is in bytes, not characters.
func TooLong(plain string) bool {
	return len(plain) > MaxBytes
}

// Hasher hashes and verifies account passwords.
type Hasher struct {
	cost int
}

// NewHasher builds a bcrypt hasher. A non-positive cost selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. Malformed hashes report false with an error.
func (h *Hasher) Verify(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
