/*
Package schema defines the declarations of persisted entity types.

An entity declaration names a type and lists its persisted fields with a
semantic type and nullability. Table and column names, the identity column
and the SQL column types are derived from it (see package convention).

# Entity Declaration

Declarations are usually written in Go by the type itself (see model.Entity),
but can also be loaded from YAML:

	entity: nested

	fields:
	  rel:    { type: reference, to: rel }
	  label:  { type: text, nullable: true }
	  score:  { type: real }

Field order is preserved from the YAML mapping.

# Field Types

Supported semantic types:

  - integer:   64-bit signed integer
  - real:      64-bit floating point
  - text:      UTF-8 string
  - blob:      Binary data
  - boolean:   Stored as 0/1
  - reference: Another entity, stored as its identity (requires to)

# Identity

Every entity has exactly one integer identity, assigned by the store on first
insert. A field may be marked with identity: true; otherwise an implicit "id"
field is used. Declaring more than one identity field is a schema error.

# Nullability

Nullable fields distinguish "absent" from the zero value: absent is written
as NULL and NULL reads back as absent. Non-nullable fields have no absent
state, so NULL reads back as the zero value of the type.
*/
package schema
