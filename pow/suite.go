package pow

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the digest length in bytes of every supported suite.
// Tag, Proof, and mask values all have this length.
const DigestSize = 32

// Suite selects the hash function the protocol runs on. Claimant and
// verifier must agree on the suite; the masking and encoding rules are
// identical across suites, only the hash function changes.
type Suite uint8

const (
	// SuiteSHA256 is the default suite, wire-compatible with existing
	// deployed claimants.
	SuiteSHA256 Suite = iota + 1

	// SuiteBLAKE2b256 uses BLAKE2b with a 256-bit digest.
	SuiteBLAKE2b256
)

// DefaultSuite is the suite used when none is configured.
const DefaultSuite = SuiteSHA256

// ParseSuite resolves a configuration name to a Suite.
func ParseSuite(name string) (Suite, error) {
	switch name {
	case "sha256":
		return SuiteSHA256, nil
	case "blake2b256":
		return SuiteBLAKE2b256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSuite, name)
	}
}

// String returns the configuration name of the suite.
func (s Suite) String() string {
	switch s {
	case SuiteSHA256:
		return "sha256"
	case SuiteBLAKE2b256:
		return "blake2b256"
	default:
		return fmt.Sprintf("suite(%d)", uint8(s))
	}
}

// Valid reports whether s is a supported suite.
func (s Suite) Valid() bool {
	return s == SuiteSHA256 || s == SuiteBLAKE2b256
}

// New returns a fresh hash state for the suite.
// Panics on an unsupported suite; obtain suites from the constants or
// ParseSuite.
func (s Suite) New() hash.Hash {
	switch s {
	case SuiteSHA256:
		return sha256.New()
	case SuiteBLAKE2b256:
		h, err := blake2b.New256(nil)
		if err != nil {
			// Unreachable: New256 fails only with an oversized key.
			panic(err)
		}
		return h
	default:
		panic(ErrUnknownSuite)
	}
}

// Size returns the suite's digest length in bytes.
func (s Suite) Size() int {
	return DigestSize
}

// chain returns H(a || b), the chaining step of the proof fold.
func (s Suite) chain(a, b []byte) []byte {
	h := s.New()
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}
