// Package storage provides content-addressed stores for registered file
// data. Keys are the raw digest bytes of a content tag; values are the
// content itself, streamed in and out so stores never hold a whole file
// in memory.
package storage

import "io"

// KeyHashSize is the required length of a key hash in bytes. A key hash
// is the decoded form of a content tag, so its length equals the digest
// size of the tag's hash suite.
const KeyHashSize = 32

// Store is a content-addressed blob store keyed by 32-byte key hashes.
type Store interface {
	// Put streams content from r and stores it under keyHash, replacing
	// any previous content. Returns the number of bytes stored.
	// Zero-length content is rejected with ErrEmptyContent.
	Put(keyHash []byte, r io.Reader) (int64, error)

	// Open returns a reader over the content stored under keyHash.
	// The caller must close it. Returns ErrNotFound if absent.
	Open(keyHash []byte) (io.ReadCloser, error)

	// Has reports whether content exists for keyHash.
	Has(keyHash []byte) (bool, error)

	// Delete removes the content stored under keyHash.
	Delete(keyHash []byte) error

	// Size returns the stored content length in bytes for keyHash.
	Size(keyHash []byte) (int64, error)

	// List returns every stored key hash, in no particular order.
	List() ([][]byte, error)
}
