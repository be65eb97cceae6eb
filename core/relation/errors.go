package relation

import (
	"errors"
	"fmt"
)

// ErrDanglingReference matches every *DanglingReferenceError with errors.Is.
var ErrDanglingReference = errors.New("dangling reference")

// ErrDepthExceeded is returned when a reference chain is deeper than the
// resolver allows. Cyclic object graphs end here.
var ErrDepthExceeded = errors.New("reference depth exceeded")

// DanglingReferenceError reports a stored identity whose row is gone.
type DanglingReferenceError struct {
	// Entity and ID name the row holding the reference.
	Entity string
	ID     int64

	Field string

	// Target and TargetID name the missing row.
	Target   string
	TargetID int64
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s#%d.%s references missing %s#%d", e.Entity, e.ID, e.Field, e.Target, e.TargetID)
}

func (e *DanglingReferenceError) Is(target error) bool {
	return target == ErrDanglingReference
}
