package challenge

import "errors"

var (
	// ErrNoChallenge indicates no unconsumed challenge exists for the tag:
	// never issued, already consumed, expired, or superseded by a newer
	// challenge. Definitive and non-retryable for the attempt that hit it.
	ErrNoChallenge = errors.New("challenge: no pending challenge")

	// ErrNilChallenge indicates a nil challenge was handed to a store.
	ErrNilChallenge = errors.New("challenge: nil challenge")
)
