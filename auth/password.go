package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// HashAlgorithm tags the encoded hash format. Hashes carrying any other
	// tag fail verification instead of raising an error.
	HashAlgorithm = "PBKDF2"

	// DefaultIterations is the PBKDF2 work factor for newly created hashes.
	// Old hashes verify at the iteration count stored in their encoding, so
	// raising this does not invalidate existing credentials.
	DefaultIterations = 100000

	// SaltLength is the random salt size in bytes for new hashes.
	SaltLength = 32

	// KeyLength is the derived key size in bytes.
	KeyLength = 32

	hashParts = 4
)

// HashPassword hashes a password with PBKDF2-HMAC-SHA256 at the default work
// factor and encodes it as ALGO:ITERATIONS:SALT_B64:HASH_B64.
func HashPassword(password string) (string, error) {
	return HashPasswordWithIterations(password, DefaultIterations)
}

// HashPasswordWithIterations hashes a password at an explicit work factor.
func HashPasswordWithIterations(password string, iterations int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if iterations <= 0 {
		return "", fmt.Errorf("invalid iteration count %d", iterations)
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, KeyLength, sha256.New)

	return fmt.Sprintf("%s:%d:%s:%s",
		HashAlgorithm,
		iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a password against an encoded hash. Malformed stored
// data, unknown algorithm tags, and wrong passwords all collapse to false;
// there is no error path an attacker could distinguish from a failed match.
// The key comparison is constant time. A length mismatch fails immediately,
// which is safe because the stored length is not secret.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, ":")
	if len(parts) != hashParts {
		return false
	}
	if parts[0] != HashAlgorithm {
		return false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}

	stored, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(stored) == 0 {
		return false
	}

	// Derive with the stored parameters, not the current defaults.
	derived := pbkdf2.Key([]byte(password), salt, iterations, len(stored), sha256.New)

	return subtle.ConstantTimeCompare(derived, stored) == 1
}

var validUsername = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// ValidateUsername validates the login identifier format: 3-50 characters of
// alphanumerics, underscore, and hyphen.
func ValidateUsername(username string) error {
	if !validUsername.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}
