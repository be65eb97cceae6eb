package coerce

import (
	"errors"
	"fmt"

	"github.com/artpar/rowmap/core/schema"
)

// ErrCoercion matches every *Error with errors.Is.
var ErrCoercion = errors.New("coercion error")

// Direction tells which way a conversion was going.
type Direction string

const (
	ToStorage   Direction = "to column"
	FromStorage Direction = "from column"
)

// Error reports a value that cannot be converted for a field.
type Error struct {
	Entity    string
	Field     string
	Type      schema.FieldType
	Direction Direction
	Value     any
	Reason    string
}

func (e *Error) Error() string {
	name := e.Field
	if e.Entity != "" {
		name = e.Entity + "." + e.Field
	}
	msg := fmt.Sprintf("%s (%s) %s: cannot use %T value", name, e.Type, e.Direction, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == ErrCoercion
}

// withEntity stamps the entity name on a coercion error.
func withEntity(err error, entity string) error {
	var ce *Error
	if errors.As(err, &ce) && ce.Entity == "" {
		ce.Entity = entity
	}
	return err
}
