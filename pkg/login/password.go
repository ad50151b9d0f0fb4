package login

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 8

// HashPassword hashes the plain-text password using bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPasswordHash compares the plain-text password with the stored hash.
func CheckPasswordHash(password, hashedPassword string) bool {
	if password == "" || hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
