package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// Kinds partition the cache namespace so that summaries and synthesis
// results never collide even for identical fingerprints.
const (
	KindSummary   = "summary"
	KindSynthesis = "synthesis"
)

// StorageError reports a failure of the backing store itself. Callers
// treat Get failures as a miss and Set failures as a skipped write;
// caching is an optimization, never a correctness dependency.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// entry is the stored payload. Expiry is checked on every read; rows past
// ExpiresAt are logically absent even while physically present.
type entry struct {
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Stats describes the physical contents of the store.
type Stats struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
}

// Store is a persistent response cache backed by BadgerDB. Entries live
// under <kind>:<key> and carry their own expiry timestamps. Concurrent
// use is safe; each operation is a single badger transaction.
type Store struct {
	db *badger.DB
}

// Open creates or opens the cache at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func storageKey(kind, key string) []byte {
	return []byte(kind + ":" + key)
}

// Get loads the entry for (kind, key) into out. It returns (false, nil)
// both for keys that were never set and for keys whose TTL has elapsed;
// callers cannot distinguish the two. A non-nil error is always a
// *StorageError.
func (s *Store) Get(ctx context.Context, kind, key string, out any) (bool, error) {
	var ent entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storageKey(kind, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ent)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: "get", Err: err}
	}
	if time.Now().After(ent.ExpiresAt) {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(ent.Value, out); err != nil {
			// A value we cannot decode is as good as absent.
			log.Warn().Str("kind", kind).Err(err).Msg("discarding undecodable cache entry")
			return false, nil
		}
	}
	return true, nil
}

// Set upserts the entry for (kind, key), overwriting any previous value.
// It also sweeps already-expired entries of the same kind in the same
// transaction; the sweep is lazy garbage collection, not required for
// correctness of Get.
func (s *Store) Set(ctx context.Context, kind, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Op: "set", Err: err}
	}
	now := time.Now()
	ent := entry{Value: raw, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	data, err := json.Marshal(ent)
	if err != nil {
		return &StorageError{Op: "set", Err: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(storageKey(kind, key), data); err != nil {
			return err
		}
		for _, stale := range expiredKeys(txn, kind, now) {
			if err := txn.Delete(stale); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &StorageError{Op: "set", Err: err}
	}
	return nil
}

// Clear removes all entries of the given kind, or every entry when kind
// is empty. It returns the number of entries removed.
func (s *Store) Clear(ctx context.Context, kind string) (int, error) {
	prefix := []byte(nil)
	if kind != "" {
		prefix = []byte(kind + ":")
	}

	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, &StorageError{Op: "clear", Err: err}
	}
	return removed, nil
}

// Stats counts stored entries, including those past their expiry that the
// lazy sweep has not caught up with yet.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	now := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			stats.Total++
			var ent entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ent)
			})
			if err != nil {
				continue
			}
			if now.After(ent.ExpiresAt) {
				stats.Expired++
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}
	return stats, nil
}

func expiredKeys(txn *badger.Txn, kind string, now time.Time) [][]byte {
	prefix := []byte(kind + ":")
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	var stale [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var ent entry
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &ent)
		})
		if err != nil || now.After(ent.ExpiresAt) {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
	}
	return stale
}
