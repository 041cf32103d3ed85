// ABOUTME: Tests for transaction support
// ABOUTME: Verifies commit, abort, prefix deletes and in-transaction reads

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestTransactionCommit(t *testing.T) {
	db, _ := openTestKV(t)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	tx.Set([]byte("key1"), []byte("value1"))
	tx.Set([]byte("key2"), []byte("value2"))
	tx.Set([]byte("key2"), []byte("value2_updated"))
	tx.Del([]byte("key1"))

	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	if _, ok, _ := db.Get([]byte("key1")); ok {
		t.Error("key1 should be deleted")
	}
	if val, ok, _ := db.Get([]byte("key2")); !ok || string(val) != "value2_updated" {
		t.Error("key2 not updated")
	}
}

func TestTransactionAbort(t *testing.T) {
	db, _ := openTestKV(t)

	if err := db.Set([]byte("existing"), []byte("value")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	tx.Set([]byte("existing"), []byte("modified"))
	tx.Set([]byte("new_key"), []byte("new_value"))

	// Changes are visible inside the transaction
	if val, ok := tx.Get([]byte("existing")); !ok || string(val) != "modified" {
		t.Error("Failed to see modification within transaction")
	}

	tx.Abort()

	if val, ok, _ := db.Get([]byte("existing")); !ok || string(val) != "value" {
		t.Error("Abort failed to revert changes")
	}
	if _, ok, _ := db.Get([]byte("new_key")); ok {
		t.Error("New key should not exist after abort")
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	db, _ := openTestKV(t)
	boom := errors.New("boom")

	err := db.Update(func(tx *KVTX) error {
		if err := tx.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if _, ok, _ := db.Get([]byte("k")); ok {
		t.Error("Write should be rolled back")
	}
}

func TestTransactionDelPrefix(t *testing.T) {
	db, _ := openTestKV(t)

	err := db.Update(func(tx *KVTX) error {
		for i := 0; i < 10; i++ {
			if err := tx.Set([]byte(fmt.Sprintf("row/%02d", i)), nil); err != nil {
				return err
			}
		}
		return tx.Set([]byte("rows"), nil)
	})
	if err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	var removed int
	err = db.Update(func(tx *KVTX) error {
		var err error
		removed, err = tx.DelPrefix([]byte("row/"), nil)
		return err
	})
	if err != nil {
		t.Fatalf("DelPrefix failed: %v", err)
	}
	if removed != 10 {
		t.Errorf("Expected 10 rows removed, got %d", removed)
	}
	if _, ok, _ := db.Get([]byte("rows")); !ok {
		t.Error("Row outside the prefix was removed")
	}
}

func TestTransactionDelPrefixMatch(t *testing.T) {
	db, _ := openTestKV(t)

	err := db.Update(func(tx *KVTX) error {
		for _, k := range []string{"row/a", "row/b", "row/keep/a", "row/keep/b"} {
			if err := tx.Set([]byte(k), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	var removed int
	err = db.Update(func(tx *KVTX) error {
		var err error
		removed, err = tx.DelPrefix([]byte("row/"), func(key []byte) (bool, error) {
			return !bytes.HasPrefix(key, []byte("row/keep/")), nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("DelPrefix failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 rows removed, got %d", removed)
	}
	for _, k := range []string{"row/keep/a", "row/keep/b"} {
		if _, ok, _ := db.Get([]byte(k)); !ok {
			t.Errorf("Unmatched row %s was removed", k)
		}
	}

	// A failing match aborts without deleting anything
	stop := errors.New("stop")
	err = db.Update(func(tx *KVTX) error {
		_, err := tx.DelPrefix([]byte("row/"), func([]byte) (bool, error) { return false, stop })
		return err
	})
	if !errors.Is(err, stop) {
		t.Errorf("Expected match error, got %v", err)
	}
	if _, ok, _ := db.Get([]byte("row/keep/a")); !ok {
		t.Error("Row removed by a failed DelPrefix")
	}
}
