// Package challenge manages the server-side lifecycle of ownership
// challenges: per tag, at most one pending seed, issued fresh on every
// dedup hit and consumed exactly once by verification.
//
// State machine per tag:
//
//	NoChallenge -> ChallengeIssued -> Consumed (terminal)
//
// Issuing while a challenge is pending replaces it (last-issued-wins);
// consuming removes the entry atomically whatever the verification
// outcome, so no seed can ever be checked twice.
package challenge

import (
	"time"

	"github.com/dedupow/libdedupow-go/pow"
)

// Challenge is a pending, unconsumed ownership challenge for a tag.
type Challenge struct {
	Tag      pow.Tag
	Seed     pow.Seed
	IssuedAt time.Time

	// ExpiresAt bounds the challenge lifetime. Zero means no expiry.
	ExpiresAt time.Time
}

// Expired reports whether the challenge has passed its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Store holds pending challenges keyed by tag. Implementations must make
// each method atomic with respect to the others; ConsumeIfPresent in
// particular is a single lookup-and-delete.
//
// Expiry is decided against the caller-supplied now, so stores stay free
// of clocks and tests stay deterministic.
type Store interface {
	// IssueOrReplace records ch as the pending challenge for its tag,
	// replacing any previous one.
	IssueOrReplace(ch *Challenge) error

	// ConsumeIfPresent atomically removes and returns the pending
	// challenge for tag. Returns ErrNoChallenge if none exists; an
	// expired entry counts as absent and is removed.
	ConsumeIfPresent(tag pow.Tag, now time.Time) (*Challenge, error)

	// Get returns the pending challenge without consuming it. Returns
	// ErrNoChallenge if none exists; an expired entry counts as absent
	// and is removed.
	Get(tag pow.Tag, now time.Time) (*Challenge, error)

	// Sweep removes every expired challenge and returns how many were
	// evicted.
	Sweep(now time.Time) (int, error)
}
