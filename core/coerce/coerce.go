// Package coerce converts between in-memory field values and column values.
//
// Column values are nil, int64, float64, string or []byte. Nullable fields
// map an absent value to NULL and back. Non-nullable fields have no absent
// state: NULL reads back as the zero value of the type and never fails.
package coerce

import (
	"math"

	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/core/schema"
)

// ToColumn converts an in-memory value to its column value.
func ToColumn(value any, f convention.DerivedField) (any, error) {
	if value == nil {
		return nullColumn(f), nil
	}

	switch f.Type {
	case schema.FieldTypeInteger:
		if p, ok := value.(*int64); ok {
			if p == nil {
				return nullColumn(f), nil
			}
			return *p, nil
		}
		if n, ok := toInt64(value); ok {
			return n, nil
		}

	case schema.FieldTypeReal:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case *float64:
			if v == nil {
				return nullColumn(f), nil
			}
			return *v, nil
		}
		if n, ok := toInt64(value); ok {
			return float64(n), nil
		}

	case schema.FieldTypeText:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case *string:
			if v == nil {
				return nullColumn(f), nil
			}
			return *v, nil
		}

	case schema.FieldTypeBlob:
		switch v := value.(type) {
		case []byte:
			if v == nil {
				return nullColumn(f), nil
			}
			return v, nil
		case string:
			return []byte(v), nil
		}

	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			return boolColumn(v), nil
		case *bool:
			if v == nil {
				return nullColumn(f), nil
			}
			return boolColumn(*v), nil
		}
		if n, ok := toInt64(value); ok && (n == 0 || n == 1) {
			return n, nil
		}

	case schema.FieldTypeReference:
		if e, ok := value.(model.Entity); ok {
			if model.IsNil(e) {
				return nil, nil
			}
			if f.Ref != "" && model.Name(e) != f.Ref {
				return nil, &Error{Field: f.Name, Type: f.Type, Direction: ToStorage, Value: value,
					Reason: "field references " + f.Ref + ", not " + model.Name(e)}
			}
			if e.ID() == 0 {
				return nil, &Error{Field: f.Name, Type: f.Type, Direction: ToStorage, Value: value,
					Reason: "referenced " + model.Name(e) + " has no identity"}
			}
			return e.ID(), nil
		}
		if n, ok := toInt64(value); ok {
			if n == 0 {
				return nil, nil
			}
			return n, nil
		}
	}

	return nil, &Error{Field: f.Name, Type: f.Type, Direction: ToStorage, Value: value}
}

// FromColumn converts a column value to the in-memory form of the field.
// References are returned as the stored identity (int64) or nil.
func FromColumn(col any, f convention.DerivedField) (any, error) {
	if col == nil {
		return absent(f), nil
	}

	fail := func(reason string) (any, error) {
		return nil, &Error{Field: f.Name, Type: f.Type, Direction: FromStorage, Value: col, Reason: reason}
	}

	switch f.Type {
	case schema.FieldTypeInteger:
		switch v := col.(type) {
		case int64:
			return box(f, v), nil
		case float64:
			if v != math.Trunc(v) || math.IsInf(v, 0) {
				return fail("not an integral value")
			}
			return box(f, int64(v)), nil
		case bool:
			return box(f, boolColumn(v)), nil
		}

	case schema.FieldTypeReal:
		switch v := col.(type) {
		case float64:
			return box(f, v), nil
		case int64:
			return box(f, float64(v)), nil
		}

	case schema.FieldTypeText:
		switch v := col.(type) {
		case string:
			return box(f, v), nil
		case []byte:
			return box(f, string(v)), nil
		}

	case schema.FieldTypeBlob:
		switch v := col.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}

	case schema.FieldTypeBoolean:
		switch v := col.(type) {
		case bool:
			return box(f, v), nil
		case int64:
			if v != 0 && v != 1 {
				return fail("boolean column holds neither 0 nor 1")
			}
			return box(f, v == 1), nil
		}

	case schema.FieldTypeReference:
		if v, ok := col.(int64); ok {
			return v, nil
		}
	}

	return fail("")
}

// Row converts the persisted (non-identity) fields of e into column values,
// in the order of d.Persisted().
func Row(d *convention.Derived, e model.Entity) ([]any, error) {
	fields := d.Persisted()
	row := make([]any, len(fields))
	for i, f := range fields {
		v, err := ToColumn(e.Get(f.Name), f)
		if err != nil {
			return nil, withEntity(err, d.Name)
		}
		row[i] = v
	}
	return row, nil
}

// Decoded is a row read back into in-memory values.
type Decoded struct {
	// ID is the identity of the row.
	ID int64

	// Values holds every non-reference field by name.
	Values map[string]any

	// Refs holds the stored identity of every reference field that is not
	// NULL. Unset references are absent from the map.
	Refs map[string]int64
}

// Decode converts a row aligned with d.Columns() into in-memory values.
func Decode(d *convention.Derived, row []any) (Decoded, error) {
	out := Decoded{Values: make(map[string]any, len(d.Fields))}

	for i, f := range d.Fields {
		if i >= len(row) {
			return Decoded{}, &Error{Entity: d.Name, Field: f.Name, Type: f.Type, Direction: FromStorage,
				Reason: "missing column " + f.Column}
		}

		v, err := FromColumn(row[i], f)
		if err != nil {
			return Decoded{}, withEntity(err, d.Name)
		}

		switch {
		case f.Identity:
			id, _ := v.(int64)
			out.ID = id
		case f.IsReference():
			if id, ok := v.(int64); ok {
				if out.Refs == nil {
					out.Refs = make(map[string]int64)
				}
				out.Refs[f.Name] = id
			}
		default:
			out.Values[f.Name] = v
		}
	}

	return out, nil
}

// nullColumn is the column value written for an absent value.
func nullColumn(f convention.DerivedField) any {
	if f.Nullable || f.IsReference() {
		return nil
	}
	switch f.Type {
	case schema.FieldTypeInteger, schema.FieldTypeBoolean:
		return int64(0)
	case schema.FieldTypeReal:
		return float64(0)
	case schema.FieldTypeText:
		return ""
	case schema.FieldTypeBlob:
		return []byte{}
	}
	return nil
}

// absent is the in-memory value read back from NULL.
func absent(f convention.DerivedField) any {
	switch f.Type {
	case schema.FieldTypeInteger:
		if f.Nullable {
			return (*int64)(nil)
		}
		return int64(0)
	case schema.FieldTypeReal:
		if f.Nullable {
			return (*float64)(nil)
		}
		return float64(0)
	case schema.FieldTypeText:
		if f.Nullable {
			return (*string)(nil)
		}
		return ""
	case schema.FieldTypeBoolean:
		if f.Nullable {
			return (*bool)(nil)
		}
		return false
	case schema.FieldTypeBlob:
		return []byte(nil)
	}
	return nil
}

func box[T any](f convention.DerivedField, v T) any {
	if f.Nullable {
		return &v
	}
	return v
}

func boolColumn(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}
