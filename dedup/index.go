package dedup

import (
	"sync"
	"time"

	"github.com/dedupow/libdedupow-go/pow"
)

// ContentEntry records what the service knows about one registered content.
type ContentEntry struct {
	KeyHash  []byte    // blob store key: the tag's raw digest bytes
	Size     int64     // content length in bytes
	StoredAt time.Time // registration time
}

// ContentIndex maps content tags to their registration records. A tag
// present in the index is a duplicate; everything else is new content.
type ContentIndex interface {
	// Put records entry under tag, replacing any previous record.
	Put(tag pow.Tag, entry *ContentEntry) error

	// Get returns the record for tag, or ErrContentNotFound.
	Get(tag pow.Tag) (*ContentEntry, error)

	// Has reports whether tag is registered.
	Has(tag pow.Tag) (bool, error)

	// Delete removes the record for tag, or returns ErrContentNotFound.
	Delete(tag pow.Tag) error

	// Count returns the number of registered contents.
	Count() (int, error)
}

// MemIndex implements ContentIndex with an in-memory map.
type MemIndex struct {
	mu      sync.RWMutex
	entries map[pow.Tag]ContentEntry
}

var _ ContentIndex = (*MemIndex)(nil)

// NewMemIndex creates an empty in-memory content index.
func NewMemIndex() *MemIndex {
	return &MemIndex{
		entries: make(map[pow.Tag]ContentEntry),
	}
}

// Put records entry under tag.
func (idx *MemIndex) Put(tag pow.Tag, entry *ContentEntry) error {
	if entry == nil {
		return ErrNilEntry
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[tag] = *entry

	return nil
}

// Get returns the record for tag.
func (idx *MemIndex) Get(tag pow.Tag) (*ContentEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entry, ok := idx.entries[tag]
	if !ok {
		return nil, ErrContentNotFound
	}
	return &entry, nil
}

// Has reports whether tag is registered.
func (idx *MemIndex) Has(tag pow.Tag) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, ok := idx.entries[tag]
	return ok, nil
}

// Delete removes the record for tag.
func (idx *MemIndex) Delete(tag pow.Tag) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[tag]; !ok {
		return ErrContentNotFound
	}
	delete(idx.entries, tag)

	return nil
}

// Count returns the number of registered contents.
func (idx *MemIndex) Count() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries), nil
}
