// ABOUTME: Sorted embedded KV store for metadata rows backed by bbolt
// ABOUTME: Keys are kept in byte order so composite key prefixes scan contiguously

package storage

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	defaultBucket  = "metadata"
	defaultTimeout = time.Second
)

// ErrClosed is returned when the store is used before Open or after Close
var ErrClosed = errors.New("kv store is not open")

// KV represents a persistent sorted key-value store
type KV struct {
	Path string

	// Bucket holding all rows, defaults to "metadata"
	Bucket string

	// Timeout for acquiring the file lock, defaults to one second
	Timeout time.Duration

	db *bolt.DB
}

// Open opens or creates the database file
func (db *KV) Open() error {
	if db.Bucket == "" {
		db.Bucket = defaultBucket
	}
	timeout := db.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	bdb, err := bolt.Open(db.Path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("open %s: %w", db.Path, err)
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(db.Bucket))
		return err
	}); err != nil {
		bdb.Close()
		return fmt.Errorf("create bucket %s: %w", db.Bucket, err)
	}

	db.db = bdb
	return nil
}

// Close closes the database
func (db *KV) Close() error {
	if db.db == nil {
		return nil
	}
	err := db.db.Close()
	db.db = nil
	return err
}

// Get retrieves a value by key
func (db *KV) Get(key []byte) (val []byte, ok bool, err error) {
	err = db.View(func(tx *KVTX) error {
		val, ok = tx.Get(key)
		return nil
	})
	return val, ok, err
}

// Set inserts or updates a key-value pair
func (db *KV) Set(key []byte, val []byte) error {
	return db.Update(func(tx *KVTX) error {
		return tx.Set(key, val)
	})
}

// Del deletes a key
func (db *KV) Del(key []byte) (deleted bool, err error) {
	err = db.Update(func(tx *KVTX) error {
		deleted, err = tx.Del(key)
		return err
	})
	return deleted, err
}

// Scan calls callback for every key >= start in order until it returns false
func (db *KV) Scan(start []byte, callback func(key, val []byte) bool) error {
	return db.View(func(tx *KVTX) error {
		tx.Scan(start, callback)
		return nil
	})
}

// ScanPrefix calls callback for every key starting with prefix until it returns false
func (db *KV) ScanPrefix(prefix []byte, callback func(key, val []byte) bool) error {
	return db.View(func(tx *KVTX) error {
		tx.ScanPrefix(prefix, callback)
		return nil
	})
}

// Update runs fn in a read-write transaction, committing when fn returns nil
func (db *KV) Update(fn func(tx *KVTX) error) error {
	if db.db == nil {
		return ErrClosed
	}
	return db.db.Update(func(btx *bolt.Tx) error {
		return fn(&KVTX{tx: btx, bucket: btx.Bucket([]byte(db.Bucket))})
	})
}

// View runs fn in a read-only transaction
func (db *KV) View(fn func(tx *KVTX) error) error {
	if db.db == nil {
		return ErrClosed
	}
	return db.db.View(func(btx *bolt.Tx) error {
		return fn(&KVTX{tx: btx, bucket: btx.Bucket([]byte(db.Bucket))})
	})
}

// Stats returns the number of rows and the size of the data file
func (db *KV) Stats() (rows int, sizeBytes int64, err error) {
	if db.db == nil {
		return 0, 0, ErrClosed
	}
	err = db.db.View(func(btx *bolt.Tx) error {
		rows = btx.Bucket([]byte(db.Bucket)).Stats().KeyN
		sizeBytes = btx.Size()
		return nil
	})
	return rows, sizeBytes, err
}
