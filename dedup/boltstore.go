package dedup

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dedupow/libdedupow-go/challenge"
	"github.com/dedupow/libdedupow-go/pow"
)

var (
	bucketContents   = []byte("contents")
	bucketChallenges = []byte("challenges")
)

// BoltStore wraps a bbolt database holding the content index and the
// pending challenges, so both survive a restart together.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("dedup: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("dedup: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketContents, bucketChallenges} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dedup: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// Contents returns a ContentIndex backed by this database.
func (s *BoltStore) Contents() *BoltContentIndex { return &BoltContentIndex{db: s.db} }

// Challenges returns a challenge.Store backed by this database.
func (s *BoltStore) Challenges() *BoltChallengeStore { return &BoltChallengeStore{db: s.db} }

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// ---------------------------------------------------------------------------
// BoltContentIndex implements ContentIndex.
// ---------------------------------------------------------------------------

// BoltContentIndex persists content registration records in bbolt,
// keyed by the tag's raw digest bytes.
type BoltContentIndex struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ ContentIndex = (*BoltContentIndex)(nil)

// Put records entry under tag, replacing any previous record.
func (s *BoltContentIndex) Put(tag pow.Tag, entry *ContentEntry) error {
	if entry == nil {
		return ErrNilEntry
	}
	key, err := tag.Bytes()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeGob(entry)
		if err != nil {
			return fmt.Errorf("encode content entry: %w", err)
		}
		if err := tx.Bucket(bucketContents).Put(key, data); err != nil {
			return fmt.Errorf("boltstore: put content entry: %w", err)
		}
		return nil
	})
}

// Get returns the record for tag.
func (s *BoltContentIndex) Get(tag pow.Tag) (*ContentEntry, error) {
	key, err := tag.Bytes()
	if err != nil {
		return nil, err
	}

	var entry ContentEntry
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketContents).Get(key)
		if data == nil {
			return ErrContentNotFound
		}
		if err := decodeGob(data, &entry); err != nil {
			return fmt.Errorf("boltstore: decode content entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Has reports whether tag is registered.
func (s *BoltContentIndex) Has(tag pow.Tag) (bool, error) {
	key, err := tag.Bytes()
	if err != nil {
		return false, err
	}

	var found bool
	err = s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketContents).Get(key) != nil
		return nil
	})
	return found, err
}

// Delete removes the record for tag.
func (s *BoltContentIndex) Delete(tag pow.Tag) error {
	key, err := tag.Bytes()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketContents)
		if b.Get(key) == nil {
			return ErrContentNotFound
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("boltstore: delete content entry: %w", err)
		}
		return nil
	})
}

// Count returns the number of registered contents.
func (s *BoltContentIndex) Count() (int, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketContents).Stats().KeyN
		return nil
	})
	return count, err
}

// ---------------------------------------------------------------------------
// BoltChallengeStore implements challenge.Store.
// ---------------------------------------------------------------------------

// BoltChallengeStore persists pending challenges in bbolt, keyed by the
// tag's raw digest bytes. Consume reads and deletes inside one write
// transaction, so a seed can never be handed out twice even across
// processes sharing the database file.
type BoltChallengeStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ challenge.Store = (*BoltChallengeStore)(nil)

// IssueOrReplace stores ch as the pending challenge for its tag,
// superseding any previous one.
func (s *BoltChallengeStore) IssueOrReplace(ch *challenge.Challenge) error {
	if ch == nil {
		return challenge.ErrNilChallenge
	}
	key, err := ch.Tag.Bytes()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeGob(ch)
		if err != nil {
			return fmt.Errorf("encode challenge: %w", err)
		}
		if err := tx.Bucket(bucketChallenges).Put(key, data); err != nil {
			return fmt.Errorf("boltstore: put challenge: %w", err)
		}
		return nil
	})
}

// ConsumeIfPresent atomically removes and returns the pending challenge
// for tag. An expired entry is removed and reported as absent.
func (s *BoltChallengeStore) ConsumeIfPresent(tag pow.Tag, now time.Time) (*challenge.Challenge, error) {
	key, err := tag.Bytes()
	if err != nil {
		return nil, err
	}

	var ch challenge.Challenge
	expired := false
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChallenges)
		data := b.Get(key)
		if data == nil {
			return challenge.ErrNoChallenge
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("boltstore: delete challenge: %w", err)
		}
		if err := decodeGob(data, &ch); err != nil {
			return fmt.Errorf("boltstore: decode challenge: %w", err)
		}
		// A non-nil return would roll the delete back, so expiry is
		// flagged here and reported after the transaction commits.
		expired = ch.Expired(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, challenge.ErrNoChallenge
	}
	return &ch, nil
}

// Get returns the pending challenge for tag without consuming it.
// An expired entry is evicted and reported as absent.
func (s *BoltChallengeStore) Get(tag pow.Tag, now time.Time) (*challenge.Challenge, error) {
	key, err := tag.Bytes()
	if err != nil {
		return nil, err
	}

	var ch challenge.Challenge
	expired := false
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChallenges)
		data := b.Get(key)
		if data == nil {
			return challenge.ErrNoChallenge
		}
		if err := decodeGob(data, &ch); err != nil {
			return fmt.Errorf("boltstore: decode challenge: %w", err)
		}
		if ch.Expired(now) {
			if err := b.Delete(key); err != nil {
				return fmt.Errorf("boltstore: evict expired challenge: %w", err)
			}
			// Returning the sentinel here would roll the eviction back.
			expired = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, challenge.ErrNoChallenge
	}
	return &ch, nil
}

// Sweep removes every expired challenge and returns how many were evicted.
func (s *BoltChallengeStore) Sweep(now time.Time) (int, error) {
	evicted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChallenges)

		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var ch challenge.Challenge
			if err := decodeGob(v, &ch); err != nil {
				return fmt.Errorf("boltstore: decode challenge in sweep: %w", err)
			}
			if ch.Expired(now) {
				keyCopy := make([]byte, len(k))
				copy(keyCopy, k)
				expired = append(expired, keyCopy)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("boltstore: delete expired challenge: %w", err)
			}
		}
		evicted = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return evicted, nil
}
