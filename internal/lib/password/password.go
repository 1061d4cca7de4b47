// Package password hashes and verifies user passwords with bcrypt.
//
// A Hash is only ever produced by New, so a value of this type always holds
// a salted bcrypt digest and never the plaintext it was derived from.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest password bcrypt accepts.
const MaxLength = 72

var (
	ErrEmpty   = errors.New("password is empty")
	ErrTooLong = errors.New("password is longer than 72 bytes")
)

// Hash is a bcrypt digest of a password.
type Hash []byte

// New hashes plain with a fresh random salt at the given cost.
// Costs outside bcrypt's range fall back to bcrypt.DefaultCost.
func New(plain string, cost int) (Hash, error) {
	const op = "password.New"

	if plain == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmpty)
	}
	if len(plain) > MaxLength {
		return nil, fmt.Errorf("%s: %w", op, ErrTooLong)
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return Hash(h), nil
}

// Matches reports whether plain is the password h was derived from.
// The comparison is constant-time; a mismatch or a corrupt hash yields false.
func (h Hash) Matches(plain string) bool {
	if len(h) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(h, []byte(plain)) == nil
}

// Cost returns the work factor h was produced with, or 0 for a corrupt hash.
func (h Hash) Cost() int {
	c, err := bcrypt.Cost(h)
	if err != nil {
		return 0
	}
	return c
}
