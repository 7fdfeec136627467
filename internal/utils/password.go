package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

var (
	decoyOnce sync.Once
	decoyHash []byte
)

// VerifyDecoy runs one bcrypt comparison against a throwaway hash and
// always reports false.  Login calls it for unknown usernames so they take
// as long to reject as a wrong password.
func VerifyDecoy(plain string, cost int) bool {
	decoyOnce.Do(func() {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			cost = bcrypt.DefaultCost
		}
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("decoy-password"), cost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(plain))
	return false
}
