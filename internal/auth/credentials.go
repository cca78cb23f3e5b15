// Package auth provides the authentication primitives behind accounts: bcrypt
// password hashing, single-use verification tokens, JWT sessions and the
// organization role permission table.
// See internal/middleware/auth.go for the request-time authentication logic.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/helporbit/helporbit/pkg/checksum"
)

const (
	// TokenLength is the number of random bytes in a verification token
	TokenLength = 32

	// MinPasswordLength is enforced on sign-up and password reset
	MinPasswordLength = 8
)

// ErrPasswordTooLong is returned for passwords bcrypt would silently truncate
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPassword hashes a password with bcrypt at cost. A cost of zero uses
// bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash
func CheckPassword(storedHash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token (sent to the user once) and
// its SHA-256 hash (the only form that is stored).
func GenerateToken() (token string, hash string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(randomBytes)
	hash, err = HashToken(token)
	if err != nil {
		return "", "", err
	}
	return token, hash, nil
}

// HashToken derives the stored lookup hash of a token
func HashToken(token string) (string, error) {
	return checksum.CalculateSHA256(strings.NewReader(token))
}

// ExtractBearerToken extracts the token from an Authorization header.
// Expected format: "Bearer <token>"
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errors.New("authorization token is empty")
	}
	return token, nil
}
