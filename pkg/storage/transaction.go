// ABOUTME: Transaction support for atomic multi-row metadata updates
// ABOUTME: Wraps a bbolt transaction; Begin/Commit/Abort for explicit control

package storage

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/nainya/metastore/pkg/mdskey"
)

// KVTX represents a key-value transaction
type KVTX struct {
	tx     *bolt.Tx
	bucket *bolt.Bucket
}

// Begin starts a new read-write transaction. The caller must Commit or Abort it.
func (db *KV) Begin() (*KVTX, error) {
	if db.db == nil {
		return nil, ErrClosed
	}
	btx, err := db.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &KVTX{tx: btx, bucket: btx.Bucket([]byte(db.Bucket))}, nil
}

// Commit commits the transaction atomically
func (tx *KVTX) Commit() error {
	return tx.tx.Commit()
}

// Abort rolls back the transaction
func (tx *KVTX) Abort() {
	_ = tx.tx.Rollback()
}

// Get retrieves a copy of the value stored under key
func (tx *KVTX) Get(key []byte) ([]byte, bool) {
	v := tx.bucket.Get(key)
	if v == nil {
		return nil, false
	}
	return append([]byte{}, v...), true
}

// Set inserts or updates a key-value pair within the transaction
func (tx *KVTX) Set(key []byte, val []byte) error {
	if val == nil {
		val = []byte{}
	}
	if err := tx.bucket.Put(key, val); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

// Del deletes a key within the transaction
func (tx *KVTX) Del(key []byte) (bool, error) {
	if tx.bucket.Get(key) == nil {
		return false, nil
	}
	if err := tx.bucket.Delete(key); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	return true, nil
}

// DelPrefix deletes the keys starting with prefix that match selects and returns
// how many were removed. A nil match deletes every key under prefix.
func (tx *KVTX) DelPrefix(prefix []byte, match func(key []byte) (bool, error)) (int, error) {
	var (
		keys    [][]byte
		scanErr error
	)
	tx.ScanPrefix(prefix, func(key, _ []byte) bool {
		if match != nil {
			ok, err := match(key)
			if err != nil {
				scanErr = err
				return false
			}
			if !ok {
				return true
			}
		}
		keys = append(keys, key)
		return true
	})
	if scanErr != nil {
		return 0, scanErr
	}
	for _, k := range keys {
		if err := tx.bucket.Delete(k); err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
	}
	return len(keys), nil
}

// Scan calls callback for every key >= start within the transaction
func (tx *KVTX) Scan(start []byte, callback func(key, val []byte) bool) {
	tx.ScanRange(start, nil, callback)
}

// ScanRange calls callback for every key in [start, end) within the transaction.
// A nil end scans to the last key.
func (tx *KVTX) ScanRange(start, end []byte, callback func(key, val []byte) bool) {
	c := tx.bucket.Cursor()
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		if end != nil && bytes.Compare(k, end) >= 0 {
			return
		}
		if !callback(append([]byte{}, k...), append([]byte{}, v...)) {
			return
		}
	}
}

// ScanPrefix calls callback for every key starting with prefix within the transaction
func (tx *KVTX) ScanPrefix(prefix []byte, callback func(key, val []byte) bool) {
	tx.ScanRange(prefix, mdskey.PrefixEnd(prefix), callback)
}
