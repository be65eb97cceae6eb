// Package storage implements the storage handle used by the persistence core.
// It owns every piece of SQL text: table DDL and the CRUD statements built
// from derived entity descriptors.
package storage

import (
	"fmt"
	"strings"

	"github.com/artpar/rowmap/ports"
)

// SelectOptions configures a multi-row SELECT.
type SelectOptions struct {
	// Key is the identity column used for ordering and paging.
	Key string

	// Where is an opaque predicate fragment supplied by the caller.
	Where string

	// After adds "Key > ?" so callers can page through rows.
	After bool

	// Desc orders by Key descending.
	Desc bool

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

// BuildCreateTableSQL generates CREATE TABLE SQL from column definitions.
func BuildCreateTableSQL(table string, cols []ports.ColumnDef) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = buildColumnDef(c)
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteIdent(table),
		strings.Join(defs, ",\n  "),
	)
}

// BuildAddColumnSQL generates ALTER TABLE ... ADD COLUMN SQL.
func BuildAddColumnSQL(table string, col ports.ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), buildColumnDef(col))
}

// BuildIndexSQL generates a CREATE INDEX statement for one column.
func BuildIndexSQL(table, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
		quoteIdent("idx_"+table+"_"+column), quoteIdent(table), quoteIdent(column),
	)
}

// buildColumnDef builds a column definition.
func buildColumnDef(c ports.ColumnDef) string {
	parts := []string{quoteIdent(c.Name), c.Type}

	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
		if c.AutoIncrement {
			parts = append(parts, "AUTOINCREMENT")
		}
	}

	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}

	return strings.Join(parts, " ")
}

// BuildInsertSQL generates an INSERT for the given columns.
func BuildInsertSQL(table string, cols []string) string {
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(table))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		joinIdents(cols),
		placeholders(len(cols)),
	)
}

// BuildUpsertSQL generates an INSERT that overwrites every column of an
// existing row with the same key. Arguments are the key followed by cols.
func BuildUpsertSQL(table, key string, cols []string) string {
	all := append([]string{key}, cols...)
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO ",
		quoteIdent(table),
		joinIdents(all),
		placeholders(len(all)),
		quoteIdent(key),
	)

	if len(cols) == 0 {
		return stmt + "NOTHING"
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c))
	}
	return stmt + "UPDATE SET " + strings.Join(sets, ", ")
}

// BuildSelectByIDSQL generates a single-row lookup by key.
func BuildSelectByIDSQL(table string, cols []string, key string) string {
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		joinIdents(cols), quoteIdent(table), quoteIdent(key),
	)
}

// BuildSelectSQL generates a multi-row SELECT. Arguments are the Where
// arguments, then the paging key when After is set.
func BuildSelectSQL(table string, cols []string, opts SelectOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", joinIdents(cols), quoteIdent(table))

	var conds []string
	if opts.Where != "" {
		conds = append(conds, "("+opts.Where+")")
	}
	if opts.After {
		conds = append(conds, quoteIdent(opts.Key)+" > ?")
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if opts.Key != "" {
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", quoteIdent(opts.Key), dir)
	}

	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}

	return b.String()
}

// BuildCountSQL generates a COUNT(*) with an optional predicate.
func BuildCountSQL(table, where string) string {
	stmt := "SELECT COUNT(*) FROM " + quoteIdent(table)
	if where != "" {
		stmt += " WHERE (" + where + ")"
	}
	return stmt
}

// BuildDeleteByIDSQL generates a single-row DELETE by key.
func BuildDeleteByIDSQL(table, key string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(table), quoteIdent(key))
}

// BuildDeleteSQL generates a DELETE with an optional predicate.
func BuildDeleteSQL(table, where string) string {
	stmt := "DELETE FROM " + quoteIdent(table)
	if where != "" {
		stmt += " WHERE (" + where + ")"
	}
	return stmt
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
