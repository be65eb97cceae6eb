package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/artpar/rowmap/ports"
)

// SQLiteStore implements ports.Store over a single database/sql handle.
//
// Every physical statement runs under mu, and a transaction holds mu from
// begin to commit, so a multi-statement cascade is never interleaved with
// statements from other goroutines. Code running inside WithTx must use
// the Executor it is given, never the store itself.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex

	lastID atomic.Int64
}

var _ ports.Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store from an open connection.
// The connection is owned by the store and closed by Close.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Exec runs a statement that returns no rows.
func (s *SQLiteStore) Exec(ctx context.Context, stmt string, args ...any) (ports.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exec(ctx, s.db, stmt, args)
}

// Query runs a statement and materialises every row.
func (s *SQLiteStore) Query(ctx context.Context, stmt string, args ...any) (*ports.ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return query(ctx, s.db, stmt, args)
}

// TableExists reports whether a table is present.
func (s *SQLiteStore) TableExists(ctx context.Context, name string) (bool, error) {
	rs, err := s.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return false, err
	}
	return rs.Len() > 0, nil
}

// Columns lists the column names of an existing table.
func (s *SQLiteStore) Columns(ctx context.Context, table string) ([]string, error) {
	rs, err := s.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}

	nameIdx := -1
	for i, c := range rs.Columns {
		if c == "name" {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, execError("table info", table, fmt.Errorf("no name column in table_info"))
	}

	cols := make([]string, 0, rs.Len())
	for _, row := range rs.Values {
		switch v := row[nameIdx].(type) {
		case string:
			cols = append(cols, v)
		case []byte:
			cols = append(cols, string(v))
		}
	}
	return cols, nil
}

// CreateTable creates a table if it does not exist.
func (s *SQLiteStore) CreateTable(ctx context.Context, name string, cols []ports.ColumnDef) error {
	if _, err := s.Exec(ctx, BuildCreateTableSQL(name, cols)); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

// AddColumn appends a column to an existing table.
func (s *SQLiteStore) AddColumn(ctx context.Context, table string, col ports.ColumnDef) error {
	if _, err := s.Exec(ctx, BuildAddColumnSQL(table, col)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, col.Name, err)
	}
	return nil
}

// CreateIndex creates a single-column index if it does not exist.
func (s *SQLiteStore) CreateIndex(ctx context.Context, table, column string) error {
	if _, err := s.Exec(ctx, BuildIndexSQL(table, column)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// LastInsertedID returns the identity assigned by the most recent insert
// through this store or one of its transactions.
func (s *SQLiteStore) LastInsertedID() int64 {
	return s.lastID.Load()
}

// WithTx runs fn inside a transaction holding the statement lock.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ports.Executor) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return execError("begin", "", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = execError("commit", "", cerr)
		}
	}()

	return fn(&txExecutor{store: s, tx: tx})
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// txExecutor runs statements inside a transaction. The store lock is
// already held by WithTx.
type txExecutor struct {
	store *SQLiteStore
	tx    *sql.Tx
}

func (t *txExecutor) Exec(ctx context.Context, stmt string, args ...any) (ports.Result, error) {
	return t.store.exec(ctx, t.tx, stmt, args)
}

func (t *txExecutor) Query(ctx context.Context, stmt string, args ...any) (*ports.ResultSet, error) {
	return query(ctx, t.tx, stmt, args)
}

// conn is the subset of *sql.DB and *sql.Tx used by the store.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) exec(ctx context.Context, c conn, stmt string, args []any) (ports.Result, error) {
	res, err := c.ExecContext(ctx, stmt, args...)
	if err != nil {
		return ports.Result{}, execError("exec", stmt, err)
	}

	var out ports.Result
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return ports.Result{}, execError("rows affected", stmt, err)
	}
	if out.LastInsertID, err = res.LastInsertId(); err != nil {
		return ports.Result{}, execError("last insert id", stmt, err)
	}
	if out.LastInsertID != 0 {
		s.lastID.Store(out.LastInsertID)
	}
	return out, nil
}

func query(ctx context.Context, c conn, stmt string, args []any) (*ports.ResultSet, error) {
	rows, err := c.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, execError("query", stmt, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, execError("columns", stmt, err)
	}

	rs := &ports.ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		scanDest := make([]any, len(cols))
		for i := range values {
			scanDest[i] = &values[i]
		}

		if err := rows.Scan(scanDest...); err != nil {
			return nil, execError("scan", stmt, err)
		}
		rs.Values = append(rs.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, execError("rows", stmt, err)
	}

	return rs, nil
}
