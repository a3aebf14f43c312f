package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password at bcrypt's default cost.
func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

// ComparePassword returns bcrypt.ErrMismatchedHashAndPassword on a wrong
// password; login treats that as invalid credentials.
func ComparePassword(hashed string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
