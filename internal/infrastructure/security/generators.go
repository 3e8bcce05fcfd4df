// Package security provides identifier generation and fingerprint hashing
package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/sha3"
)

// FingerprintHashLength is the hex length of a derived fingerprint hash.
const FingerprintHashLength = 16

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSecureToken generates a cryptographically secure random token suitable for URLs.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// HashFingerprint derives the stable fingerprint hash from a canonical
// device-property string. The hash is truncated to keep guest IDs short;
// SHA3's avalanche behavior makes the truncated prefix stable and
// well-distributed for this cardinality.
func HashFingerprint(canonical string) string {
	sum := sha3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:FingerprintHashLength]
}
