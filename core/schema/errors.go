package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchema matches every *Error with errors.Is.
var ErrSchema = errors.New("schema error")

// ErrUnknownEntity is returned when a name is not registered.
var ErrUnknownEntity = errors.New("unknown entity")

// Error reports a malformed entity declaration.
type Error struct {
	Entity   string
	Problems []string
	Err      error
}

// Errorf builds an *Error with a single problem.
func Errorf(entity, format string, args ...any) *Error {
	return &Error{Entity: entity, Problems: []string{fmt.Sprintf(format, args...)}}
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema %q", e.Entity)
	switch len(e.Problems) {
	case 0:
		if e.Err != nil {
			fmt.Fprintf(&b, ": %v", e.Err)
		}
	case 1:
		fmt.Fprintf(&b, ": %s", e.Problems[0])
	default:
		fmt.Fprintf(&b, ":\n  - %s", strings.Join(e.Problems, "\n  - "))
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	return target == ErrSchema
}

func (e *Error) Unwrap() error {
	return e.Err
}
