package storage

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store using the local filesystem.
// Files are stored at: {baseDir}/{hex(keyHash[:1])}/{hex(keyHash)}
// The first byte (2 hex chars) is used as a subdirectory for sharding.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-based content store rooted at baseDir,
// creating the directory if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &FileStore{
		baseDir: baseDir,
	}, nil
}

// KeyHashToPath converts a key hash to its filesystem path.
// Uses first byte as subdirectory for sharding: {base}/{ab}/{abcdef...}
func KeyHashToPath(baseDir string, keyHash []byte) string {
	hexHash := hex.EncodeToString(keyHash)
	shard := hexHash[:2]
	return filepath.Join(baseDir, shard, hexHash)
}

// validateKeyHash checks that the key hash is exactly KeyHashSize bytes.
func validateKeyHash(keyHash []byte) error {
	if len(keyHash) != KeyHashSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidKeyHash, len(keyHash))
	}
	return nil
}

// shardDir returns the shard directory path for a key hash.
func (fs *FileStore) shardDir(keyHash []byte) string {
	hexHash := hex.EncodeToString(keyHash)
	return filepath.Join(fs.baseDir, hexHash[:2])
}

// filePath returns the full file path for a key hash.
func (fs *FileStore) filePath(keyHash []byte) string {
	return KeyHashToPath(fs.baseDir, keyHash)
}

// Put streams content from r into the store under keyHash. The content
// is written to a temp file in the target shard and renamed into place,
// so readers never observe a partial write.
func (fs *FileStore) Put(keyHash []byte, r io.Reader) (int64, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return 0, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	shard := fs.shardDir(keyHash)
	if err := os.MkdirAll(shard, 0700); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(shard, ".put-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if n == 0 {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, ErrEmptyContent
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	path := fs.filePath(keyHash)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return n, nil
}

// Open returns a reader over the content stored under keyHash.
func (fs *FileStore) Open(keyHash []byte) (io.ReadCloser, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	f, err := os.Open(fs.filePath(keyHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return f, nil
}

// Has checks if content exists for the given key hash.
func (fs *FileStore) Has(keyHash []byte) (bool, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.filePath(keyHash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return true, nil
}

// Delete removes content by key hash.
func (fs *FileStore) Delete(keyHash []byte) error {
	if err := validateKeyHash(keyHash); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.filePath(keyHash))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return nil
}

// Size returns the size in bytes of stored content for keyHash.
func (fs *FileStore) Size(keyHash []byte) (int64, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return 0, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	info, err := os.Stat(fs.filePath(keyHash))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return info.Size(), nil
}

// List returns all stored key hashes by scanning the shard directories.
// Temp files from in-flight Puts and foreign files are skipped.
func (fs *FileStore) List() ([][]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var result [][]byte

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		shardName := entry.Name()
		// Shard directories are 2-character hex strings
		if len(shardName) != 2 {
			continue
		}

		files, err := os.ReadDir(filepath.Join(fs.baseDir, shardName))
		if err != nil {
			continue
		}

		for _, f := range files {
			if f.IsDir() {
				continue
			}

			keyHash, err := hex.DecodeString(f.Name())
			if err != nil {
				continue // skip non-hex filenames
			}
			if len(keyHash) != KeyHashSize {
				continue
			}
			result = append(result, keyHash)
		}
	}

	return result, nil
}
