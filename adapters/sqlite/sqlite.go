// Package sqlite opens the single shared SQLite connection used by the
// persistence core. Both the CGO driver (mattn/go-sqlite3, "sqlite3") and
// the pure Go driver (modernc.org/sqlite, "sqlite") are linked in.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/artpar/rowmap/core/storage"
)

// Driver names accepted by Open.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Memory is the DSN of a private in-memory database.
const Memory = ":memory:"

// Info describes an opened database.
type Info struct {
	Driver  string `json:"driver"`
	Package string `json:"package"`
	DSN     string `json:"dsn"`
	Journal string `json:"journal_mode"`
}

// Open opens dsn with the named driver, applies the connection pragmas and
// wraps the connection in a store. The pool is limited to one connection:
// an in-memory database lives on a single connection and the store
// serialises statements anyway.
func Open(driver, dsn string) (*storage.SQLiteStore, error) {
	db, err := OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLiteStore(db), nil
}

// OpenDB opens and configures the raw connection.
func OpenDB(driver, dsn string) (*sql.DB, error) {
	if _, ok := packages[driver]; !ok {
		return nil, fmt.Errorf("unsupported sqlite driver %q (want %q or %q)", driver, DriverCGO, DriverPureGo)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB
		"PRAGMA temp_store = MEMORY",
	}
	if !isMemory(dsn) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Describe reports the driver and journal mode of an open connection.
func Describe(db *sql.DB, driver, dsn string) (Info, error) {
	info := Info{Driver: driver, Package: packages[driver], DSN: dsn}
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&info.Journal); err != nil {
		return Info{}, fmt.Errorf("read journal mode: %w", err)
	}
	return info, nil
}

var packages = map[string]string{
	DriverCGO:    "github.com/mattn/go-sqlite3",
	DriverPureGo: "modernc.org/sqlite",
}

func isMemory(dsn string) bool {
	return dsn == Memory || strings.Contains(dsn, "mode=memory")
}
