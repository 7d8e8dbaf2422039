package pow

import "errors"

var (
	// ErrContentTooSmall indicates the content yields fewer than MinBlocks
	// blocks, violating the scheme's precondition.
	ErrContentTooSmall = errors.New("pow: content must yield at least 2 blocks")

	// ErrInvalidTag indicates a malformed content tag.
	ErrInvalidTag = errors.New("pow: invalid content tag")

	// ErrInvalidSeed indicates a malformed challenge seed.
	ErrInvalidSeed = errors.New("pow: invalid challenge seed")

	// ErrInvalidProof indicates a malformed proof encoding.
	ErrInvalidProof = errors.New("pow: invalid proof encoding")

	// ErrUnknownSuite indicates an unrecognized hash suite name or value.
	ErrUnknownSuite = errors.New("pow: unknown hash suite")

	// ErrEntropyFailure indicates the system random source failed.
	ErrEntropyFailure = errors.New("pow: entropy source failure")
)
