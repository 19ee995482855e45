package storage

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCredential returns the bcrypt hash stored in place of an author credential
func HashCredential(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential reports whether credential matches a hash made by HashCredential
func CheckCredential(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
