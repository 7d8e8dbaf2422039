package blocks

import (
	"errors"
	"fmt"
	"io"
)

// DefaultBlockSize is the block granularity of the proof scheme (4 KiB).
const DefaultBlockSize = 4096

// Block is one slice of a content stream. Index starts at 1. Every block
// is the full configured size except possibly the last.
type Block struct {
	Index int
	Data  []byte
}

// Segmenter reads a source sequentially and yields its blocks in ascending
// index order. It holds at most one block in memory at a time.
type Segmenter struct {
	r         io.ReadCloser
	blockSize int
	index     int
	done      bool
}

// NewSegmenter opens src and returns a Segmenter producing blockSize-byte
// blocks. The caller must Close the Segmenter when done.
func NewSegmenter(src Source, blockSize int) (*Segmenter, error) {
	if blockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	r, err := src.Open()
	if err != nil {
		return nil, err
	}
	return &Segmenter{r: r, blockSize: blockSize}, nil
}

// Next returns the next block, or io.EOF after the final block.
// Each returned block owns its data, so it is safe to retain it or hand
// it to another goroutine.
func (s *Segmenter) Next() (Block, error) {
	if s.done {
		return Block{}, io.EOF
	}

	buf := make([]byte, s.blockSize)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		s.done = true
		return Block{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Short final block.
		s.done = true
		s.index++
		return Block{Index: s.index, Data: buf[:n]}, nil
	case err != nil:
		s.done = true
		return Block{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	s.index++
	return Block{Index: s.index, Data: buf}, nil
}

// Close releases the underlying reader.
func (s *Segmenter) Close() error {
	return s.r.Close()
}

// CountForSize returns how many blocks a content of the given byte size
// yields at the given block size. Zero-length content yields zero blocks.
func CountForSize(size int64, blockSize int) int {
	if size <= 0 || blockSize <= 0 {
		return 0
	}
	bs := int64(blockSize)
	return int((size + bs - 1) / bs)
}
