package blocks

import "errors"

var (
	// ErrUnreadable indicates the content source could not be opened or read.
	ErrUnreadable = errors.New("blocks: content source unreadable")

	// ErrInvalidBlockSize indicates the block size is not a positive integer.
	ErrInvalidBlockSize = errors.New("blocks: block size must be positive")
)
