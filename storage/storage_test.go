package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeKeyHash creates a deterministic 32-byte key hash from a seed byte.
func makeKeyHash(seed byte) []byte {
	sum := sha256.Sum256([]byte{seed})
	return sum[:]
}

func putBytes(t *testing.T, s Store, keyHash []byte, data []byte) {
	t.Helper()
	n, err := s.Put(keyHash, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
}

func readAll(t *testing.T, s Store, keyHash []byte) []byte {
	t.Helper()
	rc, err := s.Open(keyHash)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

// stores lists every Store implementation under its contract name.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"file": fs,
		"mem":  NewMemStore(),
	}
}

// --- Store contract, run against every implementation ---

func TestPutThenOpen(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keyHash := makeKeyHash(0x01)
			data := []byte("registered file content")

			putBytes(t, store, keyHash, data)
			assert.Equal(t, data, readAll(t, store, keyHash))
		})
	}
}

func TestPutStreamsLargeContent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keyHash := makeKeyHash(0x42)
			data := bytes.Repeat([]byte{0xAB}, 1<<20)

			n, err := store.Put(keyHash, bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), n)
			assert.Equal(t, data, readAll(t, store, keyHash))
		})
	}
}

func TestPutOverwrite(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keyHash := makeKeyHash(0x02)

			putBytes(t, store, keyHash, []byte("original"))
			putBytes(t, store, keyHash, []byte("replacement"))

			assert.Equal(t, []byte("replacement"), readAll(t, store, keyHash))
		})
	}
}

func TestPutEmptyContent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Put(makeKeyHash(0x03), bytes.NewReader(nil))
			assert.ErrorIs(t, err, ErrEmptyContent)
		})
	}
}

func TestInvalidKeyHash(t *testing.T) {
	bad := [][]byte{nil, {}, make([]byte, 16), make([]byte, 64), {0x01}}

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, keyHash := range bad {
				_, err := store.Put(keyHash, strings.NewReader("data"))
				assert.ErrorIs(t, err, ErrInvalidKeyHash)

				_, err = store.Open(keyHash)
				assert.ErrorIs(t, err, ErrInvalidKeyHash)

				_, err = store.Has(keyHash)
				assert.ErrorIs(t, err, ErrInvalidKeyHash)

				err = store.Delete(keyHash)
				assert.ErrorIs(t, err, ErrInvalidKeyHash)

				_, err = store.Size(keyHash)
				assert.ErrorIs(t, err, ErrInvalidKeyHash)
			}
		})
	}
}

func TestOpenNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(makeKeyHash(0xFF))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestHas(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keyHash := makeKeyHash(0x04)

			exists, err := store.Has(keyHash)
			require.NoError(t, err)
			assert.False(t, exists)

			putBytes(t, store, keyHash, []byte("data"))

			exists, err = store.Has(keyHash)
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keyHash := makeKeyHash(0x05)
			putBytes(t, store, keyHash, []byte("data"))

			require.NoError(t, store.Delete(keyHash))

			_, err := store.Open(keyHash)
			assert.ErrorIs(t, err, ErrNotFound)

			err = store.Delete(keyHash)
			assert.ErrorIs(t, err, ErrNotFound, "double delete")
		})
	}
}

func TestSize(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keyHash := makeKeyHash(0x06)
			data := []byte("some registered data")
			putBytes(t, store, keyHash, data)

			size, err := store.Size(keyHash)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), size)

			_, err = store.Size(makeKeyHash(0xEE))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestList(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keys, err := store.List()
			require.NoError(t, err)
			assert.Empty(t, keys)

			want := map[string]bool{}
			for i := byte(1); i <= 3; i++ {
				keyHash := makeKeyHash(i)
				putBytes(t, store, keyHash, []byte{i})
				want[hex.EncodeToString(keyHash)] = true
			}

			keys, err = store.List()
			require.NoError(t, err)
			require.Len(t, keys, 3)
			for _, k := range keys {
				assert.True(t, want[hex.EncodeToString(k)])
			}
		})
	}
}

func TestListAfterDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			k1 := makeKeyHash(0x07)
			k2 := makeKeyHash(0x08)
			putBytes(t, store, k1, []byte("one"))
			putBytes(t, store, k2, []byte("two"))

			require.NoError(t, store.Delete(k1))

			keys, err := store.List()
			require.NoError(t, err)
			require.Len(t, keys, 1)
			assert.Equal(t, k2, keys[0])
		})
	}
}

func TestPutBinaryContent(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keyHash := makeKeyHash(0x09)
			putBytes(t, store, keyHash, data)
			assert.Equal(t, data, readAll(t, store, keyHash))
		})
	}
}

func TestPutFailingReader(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := io.MultiReader(
				strings.NewReader("partial"),
				&failingReader{err: errors.New("disk pulled")},
			)
			_, err := store.Put(makeKeyHash(0x0A), r)
			assert.ErrorIs(t, err, ErrIOFailure)

			exists, err := store.Has(makeKeyHash(0x0A))
			require.NoError(t, err)
			assert.False(t, exists, "failed put must not leave content behind")
		})
	}
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestConcurrentPutOpen(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			const goroutines = 10

			var wg sync.WaitGroup
			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func(idx int) {
					defer wg.Done()
					keyHash := makeKeyHash(byte(idx))
					data := bytes.Repeat([]byte{byte(idx)}, 100)

					if _, err := store.Put(keyHash, bytes.NewReader(data)); err != nil {
						t.Error(err)
						return
					}
					rc, err := store.Open(keyHash)
					if err != nil {
						t.Error(err)
						return
					}
					got, err := io.ReadAll(rc)
					rc.Close()
					if err != nil {
						t.Error(err)
						return
					}
					if !bytes.Equal(data, got) {
						t.Errorf("content mismatch for key %d", idx)
					}
				}(i)
			}
			wg.Wait()

			keys, err := store.List()
			require.NoError(t, err)
			assert.Len(t, keys, goroutines)
		})
	}
}

// --- FileStore specifics ---

func TestNewFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.NotNil(t, store)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewFileStoreEmptyDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.ErrorIs(t, err, ErrInvalidBaseDir)
}

func TestNewFileStorePathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(path, []byte("a file"), 0600))

	_, err := NewFileStore(path)
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestKeyHashToPath(t *testing.T) {
	keyHash := makeKeyHash(0x42)
	hexHash := hex.EncodeToString(keyHash)

	path := KeyHashToPath("/base", keyHash)
	assert.Equal(t, filepath.Join("/base", hexHash[:2], hexHash), path)
}

func TestShardLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	keyHash := makeKeyHash(0x01)
	putBytes(t, store, keyHash, []byte("data"))

	hexHash := hex.EncodeToString(keyHash)
	info, err := os.Stat(filepath.Join(dir, hexHash[:2]))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(dir, hexHash[:2], hexHash))
	assert.NoError(t, err)
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	keyHash := makeKeyHash(0x01)
	putBytes(t, store, keyHash, []byte("data"))

	r := io.MultiReader(
		strings.NewReader("partial"),
		&failingReader{err: errors.New("mid-stream failure")},
	)
	_, err = store.Put(makeKeyHash(0x02), r)
	require.ErrorIs(t, err, ErrIOFailure)

	var leftovers []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasPrefix(d.Name(), ".put-") {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	keyHash := makeKeyHash(0xAA)
	putBytes(t, store, keyHash, []byte("valid"))
	shardDir := filepath.Join(dir, hex.EncodeToString(keyHash)[:2])

	require.NoError(t, os.WriteFile(filepath.Join(shardDir, ".DS_Store"), []byte("junk"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(shardDir, hex.EncodeToString(make([]byte, 16))), []byte("short"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(shardDir, "nested"), 0700))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "longdirname"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("readme"), 0600))

	keys, err := store.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, keyHash, keys[0])
}

func TestPutReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind root")
	}
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0500))
	t.Cleanup(func() {
		os.Chmod(dir, 0700)
	})

	_, err = store.Put(makeKeyHash(0x01), strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestOpenUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind root")
	}
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	keyHash := makeKeyHash(0x01)
	putBytes(t, store, keyHash, []byte("data"))

	path := KeyHashToPath(dir, keyHash)
	require.NoError(t, os.Chmod(path, 0000))
	t.Cleanup(func() {
		os.Chmod(path, 0600)
	})

	_, err = store.Open(keyHash)
	assert.ErrorIs(t, err, ErrIOFailure)
}
