package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/artpar/rowmap/adapters/sqlite"
	"github.com/artpar/rowmap/ports"
)

func TestOpen_Drivers(t *testing.T) {
	for _, driver := range []string{sqlite.DriverCGO, sqlite.DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			store, err := sqlite.Open(driver, sqlite.Memory)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer store.Close()

			ctx := context.Background()
			cols := []ports.ColumnDef{
				{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
				{Name: "ratio", Type: "REAL"},
			}
			if err := store.CreateTable(ctx, "samples", cols); err != nil {
				t.Fatalf("CreateTable() error = %v", err)
			}

			res, err := store.Exec(ctx, `INSERT INTO "samples" ("ratio") VALUES (?)`, 0.5)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			if res.LastInsertID != 1 {
				t.Errorf("LastInsertID = %d, want 1", res.LastInsertID)
			}

			rs, err := store.Query(ctx, `SELECT "id", "ratio" FROM "samples"`)
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if rs.Len() != 1 || rs.Values[0][0] != int64(1) || rs.Values[0][1] != 0.5 {
				t.Errorf("unexpected rows: %#v", rs.Values)
			}
		})
	}
}

func TestOpen_FileUsesWAL(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "rowmap.db")

	db, err := sqlite.OpenDB(sqlite.DriverCGO, dsn)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	info, err := sqlite.Describe(db, sqlite.DriverCGO, dsn)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if info.Journal != "wal" {
		t.Errorf("journal mode = %q, want wal", info.Journal)
	}
	if info.Package != "github.com/mattn/go-sqlite3" {
		t.Errorf("package = %q", info.Package)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := sqlite.Open("postgres", "db"); err == nil {
		t.Error("unsupported driver should fail")
	}
	if _, err := sqlite.Open(sqlite.DriverCGO, ""); err == nil {
		t.Error("empty dsn should fail")
	}
}
