package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrHashingFailed = errors.New("access code hashing failed")

// AccessCodeHasher verifies the per-role access codes of the login gate.
type AccessCodeHasher interface {
	Hash(code string) (string, error)
	Compare(hashedCode, code string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a new access code hasher using bcrypt
func NewBcryptHasher(cost int) AccessCodeHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashedCode, code string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedCode), []byte(code))
}
