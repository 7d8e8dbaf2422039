// Package dedup is the server-side business logic layer: it answers dedup
// checks, registers new content, issues ownership challenges for known
// content, and settles proof submissions against the stored bytes. HTTP
// handlers and CLI commands call Service methods to perform operations.
package dedup

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dedupow/libdedupow-go/blocks"
	"github.com/dedupow/libdedupow-go/challenge"
	"github.com/dedupow/libdedupow-go/pow"
	"github.com/dedupow/libdedupow-go/storage"
)

// Outcome classifies a settled proof submission.
type Outcome uint8

const (
	// OutcomeRejected means the submission never reached comparison:
	// no live challenge existed, or the content is not registered.
	OutcomeRejected Outcome = iota

	// OutcomeFailed means the proof was compared and did not match.
	OutcomeFailed

	// OutcomeVerified means the proof matched the server's recomputation.
	OutcomeVerified
)

// String returns the outcome as a metric-friendly label.
func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeVerified:
		return "verified"
	default:
		return "rejected"
	}
}

// CheckResult is the answer to a dedup check.
type CheckResult struct {
	// Exists reports whether the tag is already registered.
	Exists bool

	// Seed is the challenge to prove against. Set only when Exists.
	Seed pow.Seed
}

// Service implements the owner side of the protocol over a content index,
// a blob store, and a challenge manager.
type Service struct {
	index      ContentIndex
	blobs      storage.Store
	challenges *challenge.Manager
	suite      pow.Suite
	blockSize  int
	workers    int

	closers []io.Closer // resources owned via Open, released by Close
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSuite selects the hash suite. Both protocol sides must agree on it.
func WithSuite(suite pow.Suite) ServiceOption {
	return func(s *Service) {
		s.suite = suite
	}
}

// WithBlockSize sets the segmentation granularity in bytes.
func WithBlockSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithWorkers sets how many goroutines hash blocks during verification.
func WithWorkers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewService assembles a Service from explicit parts. The caller keeps
// ownership of the parts and their lifecycle.
func NewService(index ContentIndex, blobs storage.Store, challenges *challenge.Manager, opts ...ServiceOption) *Service {
	s := &Service{
		index:      index,
		blobs:      blobs,
		challenges: challenges,
		suite:      pow.DefaultSuite,
		blockSize:  blocks.DefaultBlockSize,
		workers:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open wires a persistent Service from a data directory: a bbolt-backed
// index and challenge store at {dataDir}/dedup.db and a sharded content
// store under {dataDir}/content. ttl bounds challenge lifetime; zero
// disables expiry. Close releases the database.
func Open(dataDir string, ttl time.Duration, opts ...ServiceOption) (*Service, error) {
	bolt, err := OpenBoltStore(filepath.Join(dataDir, "dedup.db"))
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewFileStore(filepath.Join(dataDir, "content"))
	if err != nil {
		_ = bolt.Close()
		return nil, fmt.Errorf("dedup: init content store: %w", err)
	}

	mgr := challenge.NewManager(bolt.Challenges(), challenge.WithTTL(ttl))

	s := NewService(bolt.Contents(), blobs, mgr, opts...)
	s.closers = append(s.closers, bolt)
	return s, nil
}

// Close releases resources owned by the Service. Services built with
// NewService own nothing and Close is a no-op.
func (s *Service) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CheckTag answers the dedup question for tag. When the content is already
// registered, the result carries a fresh challenge seed, superseding any
// previously issued one for the same tag.
func (s *Service) CheckTag(ctx context.Context, tag pow.Tag) (*CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exists, err := s.index.Has(tag)
	if err != nil {
		return nil, fmt.Errorf("dedup: check tag: %w", err)
	}
	if !exists {
		return &CheckResult{}, nil
	}

	seed, err := s.challenges.Issue(tag)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Exists: true, Seed: seed}, nil
}

// Register streams new content into the blob store and records it in the
// index under tag. The stream is re-hashed on the way in: content that
// does not digest to the claimed tag is discarded with ErrTagMismatch,
// and content too small to be provable is discarded with
// pow.ErrContentTooSmall. The index is only updated after both checks
// pass, so a dedup check never reports unvalidated content.
func (s *Service) Register(ctx context.Context, tag pow.Tag, r io.Reader) (*ContentEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keyHash, err := tag.Bytes()
	if err != nil {
		return nil, err
	}

	h := s.suite.New()
	n, err := s.blobs.Put(keyHash, io.TeeReader(r, h))
	if err != nil {
		if errors.Is(err, storage.ErrEmptyContent) {
			return nil, fmt.Errorf("%w: content is empty", pow.ErrContentTooSmall)
		}
		return nil, fmt.Errorf("dedup: store content: %w", err)
	}

	if hex.EncodeToString(h.Sum(nil)) != string(tag) {
		_ = s.blobs.Delete(keyHash)
		return nil, ErrTagMismatch
	}
	if blocks.CountForSize(n, s.blockSize) < pow.MinBlocks {
		_ = s.blobs.Delete(keyHash)
		return nil, fmt.Errorf("%w: %d bytes", pow.ErrContentTooSmall, n)
	}

	entry := &ContentEntry{
		KeyHash:  keyHash,
		Size:     n,
		StoredAt: time.Now().UTC(),
	}
	if err := s.index.Put(tag, entry); err != nil {
		_ = s.blobs.Delete(keyHash)
		return nil, fmt.Errorf("dedup: index content: %w", err)
	}
	return entry, nil
}

// SubmitProof settles a verification attempt for tag. The pending
// challenge is consumed before anything else, so the attempt spends its
// seed no matter how it ends. Returns challenge.ErrNoChallenge when no
// live challenge exists, ErrContentNotFound when the content vanished
// after issuance; otherwise the outcome of comparing the submitted proof
// against a recomputation over the stored bytes.
func (s *Service) SubmitProof(ctx context.Context, tag pow.Tag, proof pow.Proof) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeRejected, err
	}

	seed, err := s.challenges.Consume(tag)
	if err != nil {
		return OutcomeRejected, err
	}

	// The seed is spent. Nothing below revives it.

	if err := ctx.Err(); err != nil {
		return OutcomeRejected, err
	}

	entry, err := s.index.Get(tag)
	if err != nil {
		return OutcomeRejected, err
	}

	if err := ctx.Err(); err != nil {
		return OutcomeRejected, err
	}

	prover := &pow.Prover{Suite: s.suite, BlockSize: s.blockSize, Workers: s.workers}
	expected, err := prover.Prove(blobSource{blobs: s.blobs, keyHash: entry.KeyHash}, seed)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("dedup: recompute proof: %w", err)
	}

	if expected != proof {
		return OutcomeFailed, nil
	}
	return OutcomeVerified, nil
}

// StartSweeper launches periodic eviction of expired challenges until ctx
// is canceled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	s.challenges.StartSweeper(ctx, interval)
}

// ContentCount returns the number of registered contents.
func (s *Service) ContentCount() (int, error) {
	return s.index.Count()
}

// blobSource adapts stored content to a blocks.Source so the prover can
// re-read it without loading it whole.
type blobSource struct {
	blobs   storage.Store
	keyHash []byte
}

func (s blobSource) Open() (io.ReadCloser, error) {
	return s.blobs.Open(s.keyHash)
}
