package security

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFingerprintIsDeterministic(t *testing.T) {
	first := HashFingerprint("1920|1080|24|Asia/Dhaka|en|Linux x86_64|Chrome")
	second := HashFingerprint("1920|1080|24|Asia/Dhaka|en|Linux x86_64|Chrome")

	assert.Equal(t, first, second)
	assert.Len(t, first, FingerprintHashLength)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]+$`), first)
}

func TestHashFingerprintSeparatesInputs(t *testing.T) {
	chrome := HashFingerprint("1920|1080|24|Asia/Dhaka|en|Linux x86_64|Chrome")
	firefox := HashFingerprint("1920|1080|24|Asia/Dhaka|en|Linux x86_64|Firefox")

	assert.NotEqual(t, chrome, firefox)
}

func TestGenerateULIDIsUniqueAndSortable(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateULID()
		require.Len(t, id, 26)
		require.False(t, seen[id], "ULIDs must not collide")
		seen[id] = true
	}
}

func TestGenerateSecureTokenLength(t *testing.T) {
	token, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	other, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
