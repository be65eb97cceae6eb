// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/ and core/storage.
package ports

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Recorder receives persistence events for observability.
type Recorder interface {
	// Operation records one public engine operation.
	Operation(op, entity string, d time.Duration, err error)

	// CascadeSave records a referenced entity saved ahead of its dependent.
	CascadeSave(entity string)

	// Hydration records a referenced entity loaded while materialising a row.
	Hydration(entity string)

	// TableCreated records a table created by schema introspection.
	TableCreated(table string)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) Operation(string, string, time.Duration, error) {}
func (NopRecorder) CascadeSave(string)                             {}
func (NopRecorder) Hydration(string)                               {}
func (NopRecorder) TableCreated(string)                            {}

// -----------------------------------------------------------------------------
// Storage Ports
// -----------------------------------------------------------------------------

// Result describes the outcome of a statement that returns no rows.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// ResultSet is a fully materialised query result.
// Values holds one slice per row, aligned with Columns.
type ResultSet struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Values)
}

// ColumnDef defines a table column.
type ColumnDef struct {
	Name          string
	Type          string
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
}

// Executor runs statements against the relational engine.
type Executor interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, stmt string, args ...any) (Result, error)

	// Query runs a statement and reads every row before returning.
	Query(ctx context.Context, stmt string, args ...any) (*ResultSet, error)
}

// Store is the single shared storage handle used by the persistence core.
type Store interface {
	Executor

	// TableExists reports whether a table is present.
	TableExists(ctx context.Context, name string) (bool, error)

	// Columns lists the column names of an existing table.
	Columns(ctx context.Context, table string) ([]string, error)

	// CreateTable creates a table if it does not exist.
	CreateTable(ctx context.Context, name string, cols []ColumnDef) error

	// AddColumn appends a column to an existing table.
	AddColumn(ctx context.Context, table string, col ColumnDef) error

	// CreateIndex creates a single-column index if it does not exist.
	CreateIndex(ctx context.Context, table, column string) error

	// LastInsertedID returns the identity assigned by the most recent insert.
	LastInsertedID() int64

	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Executor) error) error

	// Close releases the underlying connection.
	Close() error
}
