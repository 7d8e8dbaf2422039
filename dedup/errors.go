package dedup

import "errors"

var (
	// ErrContentNotFound indicates no registered content exists for the tag.
	ErrContentNotFound = errors.New("dedup: content not found")

	// ErrTagMismatch indicates uploaded content does not digest to the
	// tag it was claimed under.
	ErrTagMismatch = errors.New("dedup: content does not match claimed tag")

	// ErrNilEntry indicates a nil content entry was passed to an index.
	ErrNilEntry = errors.New("dedup: nil content entry")
)
