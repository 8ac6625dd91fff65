package utils

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BlobCache is a small on-disk key/value store for downloaded datasets.
type BlobCache struct {
	db *badger.DB
}

// OpenBlobCache opens (or creates) a cache at path. An empty path keeps
// everything in memory.
func OpenBlobCache(path string) (*BlobCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BlobCache{db: db}, nil
}

func (c *BlobCache) Close() error {
	return c.db.Close()
}

// Put stores value under key. A zero ttl never expires.
func (c *BlobCache) Put(key string, value []byte, ttl time.Duration) error {
	entry := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

// Get returns nil, nil when the key is absent or expired.
func (c *BlobCache) Get(key string) ([]byte, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

func (c *BlobCache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (c *BlobCache) ForEach(fn func(k []byte, v []byte) error) error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.Key()
			err := item.Value(func(v []byte) error {
				return fn(k, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
