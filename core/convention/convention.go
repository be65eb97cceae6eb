// Package convention derives the storage shape of an entity from its declaration.
// It applies naming conventions and the implicit identity field.
package convention

import (
	"github.com/artpar/rowmap/core/schema"
)

// IdentityColumn is the column that stores every entity's identity.
const IdentityColumn = "id"

// Derived contains all derived information from an entity declaration.
// This is the fully-expanded form used by the persistence core.
type Derived struct {
	// Source is the entity declaration the descriptor was derived from.
	Source schema.Entity

	// Name is the entity type name.
	Name string

	// Table is the database table name.
	Table string

	// Fields contains all fields; the identity field is always first.
	Fields []DerivedField
}

// DerivedField is a fully-derived field with all defaults applied.
type DerivedField struct {
	// Name of the field as declared.
	Name string

	// Column is the storage column name.
	Column string

	// Type is the semantic type.
	Type schema.FieldType

	// SQLType is the SQL column type.
	SQLType string

	// Nullable indicates the field has an absent state.
	Nullable bool

	// Ref is the referenced entity name for reference fields.
	Ref string

	// Identity marks the identity field.
	Identity bool

	// Implicit indicates the field was not declared.
	Implicit bool

	// Index requests a column index.
	Index bool
}

// IsReference returns whether the field holds another entity.
func (f DerivedField) IsReference() bool {
	return f.Type == schema.FieldTypeReference
}

// Derive expands an entity declaration into its derived form.
// The declaration must already be valid (see schema.Validate); Derive only
// reports problems that appear after naming conventions are applied.
func Derive(ent schema.Entity) (Derived, error) {
	d := Derived{
		Source: ent,
		Name:   ent.Name,
		Table:  TableName(ent),
	}

	fields, err := deriveFields(ent)
	if err != nil {
		return Derived{}, err
	}
	d.Fields = fields

	return d, nil
}

// TableName returns the table for an entity: the explicit override, or the
// plural snake_case form of its name.
func TableName(ent schema.Entity) string {
	if ent.Table != "" {
		return ent.Table
	}
	return Pluralize(ToSnake(ent.Name))
}

// deriveFields creates the full list of fields with the identity first.
func deriveFields(ent schema.Entity) ([]DerivedField, error) {
	fields := make([]DerivedField, 0, len(ent.Fields)+1)

	var identity *schema.Field
	for i := range ent.Fields {
		if ent.Fields[i].Identity {
			identity = &ent.Fields[i]
			break
		}
	}

	if identity != nil {
		fields = append(fields, DerivedField{
			Name:     identity.Name,
			Column:   IdentityColumn,
			Type:     schema.FieldTypeInteger,
			SQLType:  "INTEGER",
			Identity: true,
		})
	} else {
		// Implicit ID field
		fields = append(fields, DerivedField{
			Name:     IdentityColumn,
			Column:   IdentityColumn,
			Type:     schema.FieldTypeInteger,
			SQLType:  "INTEGER",
			Identity: true,
			Implicit: true,
		})
	}

	columns := map[string]string{IdentityColumn: fields[0].Name}

	for _, f := range ent.Fields {
		if f.Identity {
			continue
		}

		col := ToSnake(f.Name)
		if owner, taken := columns[col]; taken {
			return nil, schema.Errorf(ent.Name, "field %q maps to column %q already used by %q", f.Name, col, owner)
		}
		columns[col] = f.Name

		fields = append(fields, DerivedField{
			Name:     f.Name,
			Column:   col,
			Type:     f.Type,
			SQLType:  f.SQLType(),
			Nullable: f.Nullable,
			Ref:      f.To,
			Index:    f.Index,
		})
	}

	return fields, nil
}

// Identity returns the identity field.
func (d Derived) Identity() DerivedField {
	return d.Fields[0]
}

// Field returns the derived field with the given declared name.
func (d Derived) Field(name string) (DerivedField, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return DerivedField{}, false
}

// Columns returns every column name in field order.
func (d Derived) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Column
	}
	return cols
}

// Persisted returns every field except the identity.
func (d Derived) Persisted() []DerivedField {
	return d.Fields[1:]
}

// References returns the reference fields in declaration order.
func (d Derived) References() []DerivedField {
	var refs []DerivedField
	for _, f := range d.Fields {
		if f.IsReference() {
			refs = append(refs, f)
		}
	}
	return refs
}
