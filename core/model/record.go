package model

import (
	"fmt"
	"maps"

	"github.com/artpar/rowmap/core/schema"
)

// Record is a map-backed entity for types declared at runtime, such as
// YAML declarations loaded by the CLI.
type Record struct {
	decl   schema.Entity
	id     int64
	values map[string]any
}

// NewRecord creates a transient record of the declared type.
func NewRecord(decl schema.Entity) *Record {
	return &Record{decl: decl, values: make(map[string]any, len(decl.Fields))}
}

// RecordFactory returns a Factory producing records of the declared type.
func RecordFactory(decl schema.Entity) Factory {
	return func() Entity { return NewRecord(decl) }
}

func (r *Record) Schema() schema.Entity { return r.decl }
func (r *Record) ID() int64             { return r.id }
func (r *Record) SetID(id int64)        { r.id = id }
func (r *Record) IsNil() bool           { return r == nil }

// Get returns the stored value, or the absent/zero form of the field.
func (r *Record) Get(field string) any {
	if v, ok := r.values[field]; ok {
		return v
	}
	f, ok := r.decl.Field(field)
	if !ok {
		return nil
	}
	return zeroValue(f)
}

// Set validates value against the declared field and stores it.
func (r *Record) Set(field string, value any) error {
	f, ok := r.decl.Field(field)
	if !ok {
		return fmt.Errorf("%s: unknown field %q", r.decl.Name, field)
	}
	if f.Identity {
		id, ok := value.(int64)
		if !ok {
			return fmt.Errorf("%s.%s: identity must be int64, got %T", r.decl.Name, field, value)
		}
		r.id = id
		return nil
	}

	v, err := normalize(f, value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", r.decl.Name, field, err)
	}
	r.values[field] = v
	return nil
}

// Values returns a copy of the assigned field values.
func (r *Record) Values() map[string]any {
	return maps.Clone(r.values)
}

// normalize converts value to the Go form of the field's semantic type.
func normalize(f schema.Field, value any) (any, error) {
	if value == nil {
		return zeroValue(f), nil
	}

	switch f.Type {
	case schema.FieldTypeInteger:
		switch v := value.(type) {
		case int64:
			return box(f, v), nil
		case int:
			return box(f, int64(v)), nil
		case *int64:
			return unbox(f, v), nil
		}
	case schema.FieldTypeReal:
		switch v := value.(type) {
		case float64:
			return box(f, v), nil
		case *float64:
			return unbox(f, v), nil
		}
	case schema.FieldTypeText:
		switch v := value.(type) {
		case string:
			return box(f, v), nil
		case *string:
			return unbox(f, v), nil
		}
	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			return box(f, v), nil
		case *bool:
			return unbox(f, v), nil
		}
	case schema.FieldTypeBlob:
		if v, ok := value.([]byte); ok {
			return v, nil
		}
	case schema.FieldTypeReference:
		if v, ok := value.(Entity); ok {
			if IsNil(v) {
				return nil, nil
			}
			if v.Schema().Name != f.To {
				return nil, fmt.Errorf("reference to %q cannot hold %q", f.To, v.Schema().Name)
			}
			return v, nil
		}
	}

	return nil, fmt.Errorf("cannot assign %T to %s field", value, f.Type)
}

// box wraps v in a pointer for nullable fields.
func box[T any](f schema.Field, v T) any {
	if f.Nullable {
		return &v
	}
	return v
}

// unbox returns p for nullable fields and the pointed-to (or zero) value otherwise.
func unbox[T any](f schema.Field, p *T) any {
	if f.Nullable {
		return p
	}
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// zeroValue is the unset form of a field: a nil pointer when nullable,
// the Go zero value otherwise.
func zeroValue(f schema.Field) any {
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
	default:
		return nil
	}
}
