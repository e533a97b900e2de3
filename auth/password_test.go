package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testIterations keeps the hashing tests fast; correctness does not depend on
// the work factor.
const testIterations = 1000

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPasswordWithIterations("correct horse battery staple", testIterations)
	require.NoError(t, err)

	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("correct horse battery stable", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestHashPasswordEncoding(t *testing.T) {
	hash, err := HashPasswordWithIterations("secret", testIterations)
	require.NoError(t, err)

	parts := strings.Split(hash, ":")
	require.Len(t, parts, 4)
	assert.Equal(t, "PBKDF2", parts[0])
	assert.Equal(t, fmt.Sprintf("%d", testIterations), parts[1])

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Len(t, salt, SaltLength)

	key, err := base64.StdEncoding.DecodeString(parts[3])
	require.NoError(t, err)
	assert.Len(t, key, KeyLength)
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	first, err := HashPasswordWithIterations("same password", testIterations)
	require.NoError(t, err)
	second, err := HashPasswordWithIterations("same password", testIterations)
	require.NoError(t, err)

	// Equal passwords must not produce equal hashes.
	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("same password", first))
	assert.True(t, VerifyPassword("same password", second))
}

func TestHashPasswordRejectsEmptyPassword(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHashPasswordRejectsInvalidIterations(t *testing.T) {
	_, err := HashPasswordWithIterations("secret", 0)
	assert.Error(t, err)
	_, err = HashPasswordWithIterations("secret", -1)
	assert.Error(t, err)
}

func TestVerifyPasswordStoredIterationCount(t *testing.T) {
	// A hash created at a lower work factor still verifies after the default
	// is raised, because verification derives at the stored count.
	hash, err := HashPasswordWithIterations("legacy password", 500)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "PBKDF2:500:"))
	assert.True(t, VerifyPassword("legacy password", hash))
}

func TestVerifyPasswordMalformedHashes(t *testing.T) {
	valid, err := HashPasswordWithIterations("secret", testIterations)
	require.NoError(t, err)
	parts := strings.Split(valid, ":")

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"garbage", "not-a-hash"},
		{"too few parts", "PBKDF2:1000:" + parts[2]},
		{"too many parts", valid + ":extra"},
		{"wrong algorithm", "BCRYPT:1000:" + parts[2] + ":" + parts[3]},
		{"non-numeric iterations", "PBKDF2:abc:" + parts[2] + ":" + parts[3]},
		{"zero iterations", "PBKDF2:0:" + parts[2] + ":" + parts[3]},
		{"negative iterations", "PBKDF2:-1:" + parts[2] + ":" + parts[3]},
		{"invalid salt base64", "PBKDF2:1000:!!!:" + parts[3]},
		{"invalid key base64", "PBKDF2:1000:" + parts[2] + ":!!!"},
		{"empty key", "PBKDF2:1000:" + parts[2] + ":"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Never panics, never matches.
			assert.False(t, VerifyPassword("secret", tt.hash))
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"alice", true},
		{"bob_smith", true},
		{"user-42", true},
		{"abc", true},
		{strings.Repeat("a", 50), true},
		{"ab", false},
		{strings.Repeat("a", 51), false},
		{"", false},
		{"has space", false},
		{"has.dot", false},
		{"ümlaut", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidUsername)
			}
		})
	}
}
