package crypto

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("gameportal-placeholder"), bcrypt.DefaultCost)
	return hash
})

// HashPassword hashes plaintext using bcrypt.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword compares plaintext to hashed secret.
func ComparePassword(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}

// BurnComparison runs a bcrypt comparison against a fixed hash and discards the
// result, so a lookup miss costs as much as a password mismatch.
func BurnComparison(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(plain))
}
