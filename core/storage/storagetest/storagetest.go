// Package storagetest opens throwaway stores for tests.
package storagetest

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/rowmap/core/storage"
)

// NewMemory returns a store over a private in-memory database that is
// closed when the test ends.
func NewMemory(t testing.TB) *storage.SQLiteStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	store := storage.NewSQLiteStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}
