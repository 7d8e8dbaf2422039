package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/dedupow/libdedupow-go/pow"
)

// DefaultTTL bounds a challenge's lifetime when none is configured.
const DefaultTTL = 10 * time.Minute

// Manager is the authority over challenge lifecycle. It generates seeds,
// applies the TTL, and delegates storage to a Store.
type Manager struct {
	store Store
	ttl   time.Duration
	clock Clock
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the challenge lifetime. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		m.ttl = d
	}
}

// WithClock injects a clock, for tests.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewManager creates a Manager over the given store with DefaultTTL.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		ttl:   DefaultTTL,
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue generates a fresh random seed and records it as the pending
// challenge for tag, superseding any previous one. The prior seed, if
// any, becomes unreachable.
func (m *Manager) Issue(tag pow.Tag) (pow.Seed, error) {
	seed, err := pow.GenerateSeed()
	if err != nil {
		return "", err
	}

	now := m.clock.Now()
	ch := &Challenge{
		Tag:      tag,
		Seed:     seed,
		IssuedAt: now,
	}
	if m.ttl > 0 {
		ch.ExpiresAt = now.Add(m.ttl)
	}

	if err := m.store.IssueOrReplace(ch); err != nil {
		return "", fmt.Errorf("challenge: issue %s: %w", tag.Short(), err)
	}
	return seed, nil
}

// Consume atomically removes and returns the pending seed for tag.
// Returns ErrNoChallenge if no unconsumed, unexpired challenge exists.
// After Consume returns, no verification attempt can see this seed again.
func (m *Manager) Consume(tag pow.Tag) (pow.Seed, error) {
	ch, err := m.store.ConsumeIfPresent(tag, m.clock.Now())
	if err != nil {
		return "", err
	}
	return ch.Seed, nil
}

// Sweep evicts every expired challenge from the store.
func (m *Manager) Sweep() (int, error) {
	return m.store.Sweep(m.clock.Now())
}

// StartSweeper launches a goroutine that calls Sweep every interval until
// ctx is canceled. Sweep errors are dropped; call Sweep directly if you
// need them. A non-positive interval disables the sweeper.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = m.Sweep()
			}
		}
	}()
}
