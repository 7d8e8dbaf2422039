// Package blocks turns content sources into ordered sequences of fixed-size
// byte blocks.
//
// A Source is anything that can be re-opened as a byte stream. The ownership
// proof protocol reads content more than once (once for the tag, once per
// proof computation), so one-shot readers do not qualify; spool them to a
// file or buffer first.
package blocks

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is a re-openable stream of content bytes.
type Source interface {
	// Open returns a fresh reader positioned at the start of the content.
	// The caller must close the returned reader.
	Open() (io.ReadCloser, error)
}

// FileSource streams a file from the local filesystem.
type FileSource struct {
	Path string
}

// Open opens the underlying file.
func (s FileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return f, nil
}

// BytesSource streams an in-memory byte slice.
type BytesSource struct {
	Data []byte
}

// Open returns a reader over the slice. The slice is not copied; callers
// must not mutate it while a reader is live.
func (s BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}
