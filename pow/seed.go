package pow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// SeedEntropyBytes is the entropy drawn per challenge seed (128 bits).
	SeedEntropyBytes = 16

	// SeedHexLen is the length of a seed's wire form in ASCII characters.
	SeedHexLen = 2 * SeedEntropyBytes
)

// Seed is a one-time challenge value: SeedEntropyBytes of randomness,
// represented as a lowercase hex string. The hex STRING is the canonical
// form — its ASCII bytes feed the mask derivation, never the decoded
// entropy. See Suite.Mask.
type Seed string

// GenerateSeed draws a fresh seed from the system random source.
func GenerateSeed() (Seed, error) {
	b := make([]byte, SeedEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntropyFailure, err)
	}
	return Seed(hex.EncodeToString(b)), nil
}

// ParseSeed validates the wire form of a seed.
func ParseSeed(s string) (Seed, error) {
	if len(s) != SeedHexLen {
		return "", fmt.Errorf("%w: got %d chars, want %d", ErrInvalidSeed, len(s), SeedHexLen)
	}
	if !isLowerHex(s) {
		return "", fmt.Errorf("%w: not lowercase hex", ErrInvalidSeed)
	}
	return Seed(s), nil
}

// isLowerHex reports whether s consists only of [0-9a-f].
func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
