package storage

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MemStore implements Store with an in-memory map. It serves tests and
// ephemeral deployments where registered content need not survive a
// restart.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory content store.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[string][]byte),
	}
}

// Put reads r to completion and stores the content under keyHash.
func (ms *MemStore) Put(keyHash []byte, r io.Reader) (int64, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return 0, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if len(data) == 0 {
		return 0, ErrEmptyContent
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.entries[string(keyHash)] = data

	return int64(len(data)), nil
}

// Open returns a reader over the stored content.
func (ms *MemStore) Open(keyHash []byte) (io.ReadCloser, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, ok := ms.entries[string(keyHash)]
	if !ok {
		return nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Has reports whether content exists for keyHash.
func (ms *MemStore) Has(keyHash []byte) (bool, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return false, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, ok := ms.entries[string(keyHash)]
	return ok, nil
}

// Delete removes the content stored under keyHash.
func (ms *MemStore) Delete(keyHash []byte) error {
	if err := validateKeyHash(keyHash); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.entries[string(keyHash)]; !ok {
		return ErrNotFound
	}
	delete(ms.entries, string(keyHash))

	return nil
}

// Size returns the stored content length for keyHash.
func (ms *MemStore) Size(keyHash []byte) (int64, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return 0, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, ok := ms.entries[string(keyHash)]
	if !ok {
		return 0, ErrNotFound
	}

	return int64(len(data)), nil
}

// List returns every stored key hash.
func (ms *MemStore) List() ([][]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([][]byte, 0, len(ms.entries))
	for k := range ms.entries {
		result = append(result, []byte(k))
	}

	return result, nil
}
