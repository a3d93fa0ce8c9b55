// Package state persists the last applied desired-state graph. Planning
// diffs a fresh synthesis against this snapshot; destroy walks it in
// reverse creation order.
package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"
)

// Bucket names in bbolt.
var (
	bucketSnapshot = []byte("snapshot")
	bucketMeta     = []byte("meta")
)

var keyRevision = []byte("current_revision")

// Record is one resource in the snapshot.
type Record struct {
	Key     string          `json:"key"`
	Type    string          `json:"type"`
	CloudID string          `json:"cloud_id,omitempty"`
	VPCID   string          `json:"vpc_id,omitempty"`
	Seq     int             `json:"seq"`
	Data    json.RawMessage `json:"data"`
}

// Store is a bbolt-backed snapshot store with an in-memory key index.
type Store struct {
	mu sync.RWMutex

	index      *btree.BTreeG[string]
	db         *bbolt.DB
	currentRev int64
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "topograph.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketSnapshot, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		index: btree.NewG[string](32, func(a, b string) bool { return a < b }),
		db:    db,
	}

	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Revision returns the current snapshot revision.
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Snapshot returns the full snapshot keyed by resource key.
func (s *Store) Snapshot() (map[string]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make(map[string]Record)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshot).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt snapshot record %q: %w", k, err)
			}
			records[rec.Key] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Keys returns all snapshot keys in lexical order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, s.index.Len())
	s.index.Ascend(func(key string) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// WriteSnapshot atomically replaces the snapshot and bumps the revision.
func (s *Store) WriteSnapshot(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev := s.currentRev + 1

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketSnapshot); err != nil {
			return err
		}
		bucket, err := tx.CreateBucket(bucketSnapshot)
		if err != nil {
			return err
		}

		for _, rec := range records {
			value, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(rec.Key), value); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(keyRevision, int64ToBytes(rev))
	})
	if err != nil {
		return err
	}

	s.currentRev = rev
	s.index.Clear(false)
	for _, rec := range records {
		s.index.ReplaceOrInsert(rec.Key)
	}

	return nil
}

// Clear drops the snapshot entirely, keeping the revision counter.
func (s *Store) Clear() error {
	return s.WriteSnapshot(nil)
}

// load reads the revision and rebuilds the key index from disk.
func (s *Store) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyRevision); data != nil {
			s.currentRev = bytesToInt64(data)
		}

		return tx.Bucket(bucketSnapshot).ForEach(func(k, _ []byte) error {
			s.index.ReplaceOrInsert(string(k))
			return nil
		})
	})
}

func int64ToBytes(n int64) []byte {
	return []byte(fmt.Sprintf("%d", n))
}

func bytesToInt64(b []byte) int64 {
	var n int64
	_, _ = fmt.Sscanf(string(b), "%d", &n)
	return n
}
