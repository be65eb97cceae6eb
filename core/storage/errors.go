package storage

import (
	"errors"
	"fmt"
)

// ErrStorage matches every *ExecError with errors.Is.
var ErrStorage = errors.New("storage error")

// ExecError wraps a failure reported by the database driver together with
// the operation and statement that caused it.
type ExecError struct {
	Op        string
	Statement string
	Err       error
}

func (e *ExecError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v [%s]", e.Op, e.Err, e.Statement)
}

func (e *ExecError) Unwrap() error { return e.Err }

func (e *ExecError) Is(target error) bool { return target == ErrStorage }

func execError(op, stmt string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecError{Op: op, Statement: stmt, Err: err}
}
