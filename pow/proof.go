// Package pow implements the ownership proof protocol: content tagging,
// challenge seeds, index-bound masking, and the chained proof fold.
//
// Proof formula, for content blocks b_1..b_N (N >= 2) and seed s:
//
//	h_i   = H(b_i || mask(s, i))          i = 1..N
//	acc   = H(h_1 || h_2)
//	acc   = H(acc || h_i)                 i = 3..N, ascending
//	proof = hex(acc)
//
// Every block and its index-bound mask contributes to the final digest, so
// omitting, reordering, or substituting any block changes the proof. The
// proof cannot be computed without the seed, so it cannot be precomputed
// before a challenge is issued. The fold is a pure function of (content,
// seed) and recomputes identically at any later time.
package pow

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dedupow/libdedupow-go/blocks"
)

// MinBlocks is the minimum number of blocks content must yield to be
// eligible for the proof scheme.
const MinBlocks = 2

// ProofHexLen is the length of a proof's wire form in ASCII characters.
const ProofHexLen = 2 * DigestSize

// Proof is the final chained digest over (content, seed), lowercase hex.
// It exists only transiently for comparison and is never stored.
type Proof string

// ParseProof validates the wire form of a proof.
func ParseProof(s string) (Proof, error) {
	if len(s) != ProofHexLen {
		return "", fmt.Errorf("%w: got %d chars, want %d", ErrInvalidProof, len(s), ProofHexLen)
	}
	if !isLowerHex(s) {
		return "", fmt.Errorf("%w: not lowercase hex", ErrInvalidProof)
	}
	return Proof(s), nil
}

// Prover computes ownership proofs. The zero value is not ready to use;
// call NewProver or set every field.
type Prover struct {
	// Suite is the hash suite; both protocol sides must agree on it.
	Suite Suite

	// BlockSize is the segmentation granularity in bytes.
	BlockSize int

	// Workers sets how many goroutines hash block digests. Values <= 1
	// select the sequential path. Both paths produce identical proofs:
	// per-index digests are independent, but the fold always combines
	// them in ascending index order.
	Workers int
}

// NewProver returns a Prover with the default suite, block size, and
// sequential hashing.
func NewProver() *Prover {
	return &Prover{
		Suite:     DefaultSuite,
		BlockSize: blocks.DefaultBlockSize,
		Workers:   1,
	}
}

// Prove computes the proof for (src, seed).
// Returns ErrContentTooSmall if src yields fewer than MinBlocks blocks.
func (p *Prover) Prove(src blocks.Source, seed Seed) (Proof, error) {
	if _, err := ParseSeed(string(seed)); err != nil {
		return "", err
	}

	seg, err := blocks.NewSegmenter(src, p.BlockSize)
	if err != nil {
		return "", err
	}
	defer seg.Close()

	if p.Workers > 1 {
		return p.proveParallel(seg, seed)
	}
	return p.proveSequential(seg, seed)
}

// proveSequential streams the fold with one block in memory at a time.
func (p *Prover) proveSequential(seg *blocks.Segmenter, seed Seed) (Proof, error) {
	var (
		first []byte
		acc   []byte
		count int
	)
	for {
		b, err := seg.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		count++
		d := p.blockDigest(b, seed)
		switch count {
		case 1:
			first = d
		case 2:
			acc = p.Suite.chain(first, d)
		default:
			acc = p.Suite.chain(acc, d)
		}
	}

	if count < MinBlocks {
		return "", fmt.Errorf("%w: got %d", ErrContentTooSmall, count)
	}
	return Proof(hex.EncodeToString(acc)), nil
}

// proveParallel hashes per-index digests on a worker pool, then folds the
// index-aligned results sequentially. Digest slots are 32 bytes each, so
// memory stays bounded by block count, not content size.
func (p *Prover) proveParallel(seg *blocks.Segmenter, seed Seed) (Proof, error) {
	jobs := make(chan blocks.Block, p.Workers)

	var (
		mu      sync.Mutex
		digests [][]byte
		wg      sync.WaitGroup
	)
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				d := p.blockDigest(b, seed)
				mu.Lock()
				for len(digests) < b.Index {
					digests = append(digests, nil)
				}
				digests[b.Index-1] = d
				mu.Unlock()
			}
		}()
	}

	count := 0
	var readErr error
	for {
		b, err := seg.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		count++
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	if readErr != nil {
		return "", readErr
	}
	if count < MinBlocks {
		return "", fmt.Errorf("%w: got %d", ErrContentTooSmall, count)
	}

	// Sequential reduce, strictly ascending index order.
	acc := p.Suite.chain(digests[0], digests[1])
	for i := 2; i < count; i++ {
		acc = p.Suite.chain(acc, digests[i])
	}
	return Proof(hex.EncodeToString(acc)), nil
}

// blockDigest computes h_i = H(b_i || mask(seed, i)).
func (p *Prover) blockDigest(b blocks.Block, seed Seed) []byte {
	h := p.Suite.New()
	h.Write(b.Data)
	h.Write(p.Suite.Mask(seed, b.Index))
	return h.Sum(nil)
}
