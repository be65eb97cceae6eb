// Package model defines the contract between persisted types and the
// persistence core.
//
// A persisted type describes itself with a static schema.Entity and exposes
// its fields by name. No reflection is involved: Get and Set are written
// by the type (or provided by Record for dynamic types).
//
// Field values use these Go forms:
//
//	semantic type  non-nullable  nullable (nil = absent)
//	integer        int64         *int64
//	real           float64       *float64
//	text           string        *string
//	blob           []byte        []byte
//	boolean        bool          *bool
//	reference      Entity        Entity
package model

import (
	"github.com/artpar/rowmap/core/schema"
)

// Entity is implemented by every persisted type.
type Entity interface {
	// Schema returns the static declaration of the type. It must not
	// depend on receiver state: it is also called on zero values.
	Schema() schema.Entity

	// ID returns the identity, or 0 while the entity is transient.
	ID() int64

	// SetID assigns the identity after an insert.
	SetID(id int64)

	// Get returns the current value of a declared field. An unset
	// reference is returned as an untyped nil (or the entity implements
	// IsNil).
	Get(field string) any

	// Set assigns a declared field from its Go form.
	Set(field string, value any) error
}

// Factory creates a new, transient instance of an entity type.
type Factory func() Entity

// State is the lifecycle state of an instance as seen by the engine.
type State int

const (
	// Transient instances have no identity; saving inserts them.
	Transient State = iota
	// Persisted instances carry an identity; saving upserts them.
	Persisted
)

func (s State) String() string {
	switch s {
	case Transient:
		return "transient"
	case Persisted:
		return "persisted"
	default:
		return "unknown"
	}
}

// StateOf reports whether e has been assigned an identity.
//
// An instance whose row was deleted keeps its identity and still reports
// Persisted; saving it again re-inserts the row under the same identity.
func StateOf(e Entity) State {
	if e.ID() == 0 {
		return Transient
	}
	return Persisted
}

// IsNil reports whether e is nil or a typed nil pointer wrapped in the
// interface. Reference fields use either form for "unset".
func IsNil(e Entity) bool {
	if e == nil {
		return true
	}
	if n, ok := e.(interface{ IsNil() bool }); ok {
		return n.IsNil()
	}
	return false
}

// Name returns the entity type name of e.
func Name(e Entity) string {
	return e.Schema().Name
}
