// Package modeltest provides entity types for tests of the persistence core.
//
// Simple, Rel and Nested form a reference chain (Nested → Rel → Simple).
// DoubleModel pairs a nullable real with a non-nullable one. Kitchen
// carries every semantic type in both nullable and non-nullable form.
package modeltest

import (
	"fmt"

	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/core/schema"
)

// Factories lists every fixture type, in dependency order.
func Factories() []model.Factory {
	return []model.Factory{
		func() model.Entity { return &Simple{} },
		func() model.Entity { return &Rel{} },
		func() model.Entity { return &Nested{} },
		func() model.Entity { return &DoubleModel{} },
		func() model.Entity { return &Kitchen{} },
	}
}

// -----------------------------------------------------------------------------
// Simple
// -----------------------------------------------------------------------------

var simpleSchema = schema.Entity{
	Name: "Simple",
	Fields: schema.Fields{
		{Name: "name", Type: schema.FieldTypeText},
	},
}

// Simple has an identity and one text field.
type Simple struct {
	Id   int64
	Name string
}

func (*Simple) Schema() schema.Entity { return simpleSchema }
func (s *Simple) ID() int64           { return s.Id }
func (s *Simple) SetID(id int64)      { s.Id = id }
func (s *Simple) IsNil() bool         { return s == nil }

func (s *Simple) Get(field string) any {
	switch field {
	case "name":
		return s.Name
	}
	return nil
}

func (s *Simple) Set(field string, value any) error {
	switch field {
	case "name":
		s.Name, _ = value.(string)
		return nil
	}
	return unknown(s, field)
}

// -----------------------------------------------------------------------------
// Rel
// -----------------------------------------------------------------------------

var relSchema = schema.Entity{
	Name: "Rel",
	Fields: schema.Fields{
		{Name: "simple", Type: schema.FieldTypeReference, To: "Simple"},
	},
}

// Rel references a Simple.
type Rel struct {
	Id     int64
	Simple *Simple
}

func (*Rel) Schema() schema.Entity { return relSchema }
func (r *Rel) ID() int64           { return r.Id }
func (r *Rel) SetID(id int64)      { r.Id = id }
func (r *Rel) IsNil() bool         { return r == nil }

func (r *Rel) Get(field string) any {
	switch field {
	case "simple":
		if r.Simple == nil {
			return nil
		}
		return r.Simple
	}
	return nil
}

func (r *Rel) Set(field string, value any) error {
	switch field {
	case "simple":
		r.Simple, _ = value.(*Simple)
		return nil
	}
	return unknown(r, field)
}

// -----------------------------------------------------------------------------
// Nested
// -----------------------------------------------------------------------------

var nestedSchema = schema.Entity{
	Name: "Nested",
	Fields: schema.Fields{
		{Name: "rel", Type: schema.FieldTypeReference, To: "Rel"},
	},
}

// Nested references a Rel.
type Nested struct {
	Id  int64
	Rel *Rel
}

func (*Nested) Schema() schema.Entity { return nestedSchema }
func (n *Nested) ID() int64           { return n.Id }
func (n *Nested) SetID(id int64)      { n.Id = id }
func (n *Nested) IsNil() bool         { return n == nil }

func (n *Nested) Get(field string) any {
	switch field {
	case "rel":
		if n.Rel == nil {
			return nil
		}
		return n.Rel
	}
	return nil
}

func (n *Nested) Set(field string, value any) error {
	switch field {
	case "rel":
		n.Rel, _ = value.(*Rel)
		return nil
	}
	return unknown(n, field)
}

// -----------------------------------------------------------------------------
// DoubleModel
// -----------------------------------------------------------------------------

var doubleSchema = schema.Entity{
	Name: "DoubleModel",
	Fields: schema.Fields{
		{Name: "double", Type: schema.FieldTypeReal, Nullable: true},
		{Name: "rawDouble", Type: schema.FieldTypeReal},
	},
}

// DoubleModel holds an optional real and a plain real.
type DoubleModel struct {
	Id        int64
	Double    *float64
	RawDouble float64
}

func (*DoubleModel) Schema() schema.Entity { return doubleSchema }
func (d *DoubleModel) ID() int64           { return d.Id }
func (d *DoubleModel) SetID(id int64)      { d.Id = id }

func (d *DoubleModel) Get(field string) any {
	switch field {
	case "double":
		return d.Double
	case "rawDouble":
		return d.RawDouble
	}
	return nil
}

func (d *DoubleModel) Set(field string, value any) error {
	switch field {
	case "double":
		d.Double, _ = value.(*float64)
		return nil
	case "rawDouble":
		d.RawDouble, _ = value.(float64)
		return nil
	}
	return unknown(d, field)
}

// -----------------------------------------------------------------------------
// Kitchen
// -----------------------------------------------------------------------------

var kitchenSchema = schema.Entity{
	Name: "Kitchen",
	Fields: schema.Fields{
		{Name: "count", Type: schema.FieldTypeInteger},
		{Name: "maybeCount", Type: schema.FieldTypeInteger, Nullable: true},
		{Name: "ratio", Type: schema.FieldTypeReal},
		{Name: "maybeRatio", Type: schema.FieldTypeReal, Nullable: true},
		{Name: "label", Type: schema.FieldTypeText},
		{Name: "maybeLabel", Type: schema.FieldTypeText, Nullable: true},
		{Name: "flag", Type: schema.FieldTypeBoolean},
		{Name: "maybeFlag", Type: schema.FieldTypeBoolean, Nullable: true},
		{Name: "payload", Type: schema.FieldTypeBlob, Nullable: true},
		{Name: "owner", Type: schema.FieldTypeReference, To: "Simple"},
	},
}

// Kitchen carries one field of every semantic type and nullability.
type Kitchen struct {
	Id         int64
	Count      int64
	MaybeCount *int64
	Ratio      float64
	MaybeRatio *float64
	Label      string
	MaybeLabel *string
	Flag       bool
	MaybeFlag  *bool
	Payload    []byte
	Owner      *Simple
}

func (*Kitchen) Schema() schema.Entity { return kitchenSchema }
func (k *Kitchen) ID() int64           { return k.Id }
func (k *Kitchen) SetID(id int64)      { k.Id = id }

func (k *Kitchen) Get(field string) any {
	switch field {
	case "count":
		return k.Count
	case "maybeCount":
		return k.MaybeCount
	case "ratio":
		return k.Ratio
	case "maybeRatio":
		return k.MaybeRatio
	case "label":
		return k.Label
	case "maybeLabel":
		return k.MaybeLabel
	case "flag":
		return k.Flag
	case "maybeFlag":
		return k.MaybeFlag
	case "payload":
		return k.Payload
	case "owner":
		if k.Owner == nil {
			return nil
		}
		return k.Owner
	}
	return nil
}

func (k *Kitchen) Set(field string, value any) error {
	switch field {
	case "count":
		k.Count, _ = value.(int64)
	case "maybeCount":
		k.MaybeCount, _ = value.(*int64)
	case "ratio":
		k.Ratio, _ = value.(float64)
	case "maybeRatio":
		k.MaybeRatio, _ = value.(*float64)
	case "label":
		k.Label, _ = value.(string)
	case "maybeLabel":
		k.MaybeLabel, _ = value.(*string)
	case "flag":
		k.Flag, _ = value.(bool)
	case "maybeFlag":
		k.MaybeFlag, _ = value.(*bool)
	case "payload":
		k.Payload, _ = value.([]byte)
	case "owner":
		k.Owner, _ = value.(*Simple)
	default:
		return unknown(k, field)
	}
	return nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func unknown(e model.Entity, field string) error {
	return fmt.Errorf("%s: unknown field %q", e.Schema().Name, field)
}
