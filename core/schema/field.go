package schema

// Field declares one persisted field of an entity.
type Field struct {
	// Name is the in-memory field name. Column names are derived from it.
	Name string `yaml:"-"`

	// Type is the semantic type. See FieldType constants.
	Type FieldType `yaml:"type"`

	// Nullable marks fields that can be absent. Absent values are stored
	// as NULL and read back as absent; non-nullable fields read NULL back
	// as the zero value of their type.
	Nullable bool `yaml:"nullable,omitempty"`

	// Identity marks the auto-assigned integer key. At most one field per
	// entity may carry it; an implicit "id" field is used otherwise.
	Identity bool `yaml:"identity,omitempty"`

	// To names the referenced entity for reference fields.
	To string `yaml:"to,omitempty"`

	// Index creates a database index on this field.
	Index bool `yaml:"index,omitempty"`

	// Description provides human-readable documentation for this field.
	Description string `yaml:"description,omitempty"`
}

// FieldType represents the semantic type of a field, independent of its
// in-memory representation.
type FieldType string

const (
	FieldTypeInteger   FieldType = "integer"
	FieldTypeReal      FieldType = "real"
	FieldTypeText      FieldType = "text"
	FieldTypeBlob      FieldType = "blob"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeReference FieldType = "reference" // Requires To
)

// IsReference returns whether the field holds another entity.
func (f Field) IsReference() bool {
	return f.Type == FieldTypeReference
}

// SQLType returns the SQLite column type for this field.
func (f Field) SQLType() string {
	return f.Type.SQLType()
}

// SQLType returns the SQLite column type for a semantic type.
// References are stored as the identity of the referenced row.
func (t FieldType) SQLType() string {
	switch t {
	case FieldTypeInteger, FieldTypeBoolean, FieldTypeReference:
		return "INTEGER"
	case FieldTypeReal:
		return "REAL"
	case FieldTypeBlob:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// Valid reports whether t is a known semantic type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeInteger, FieldTypeReal, FieldTypeText,
		FieldTypeBlob, FieldTypeBoolean, FieldTypeReference:
		return true
	default:
		return false
	}
}
