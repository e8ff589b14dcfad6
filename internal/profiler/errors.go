package profiler

import "fmt"

// NotFoundError reports a requested column that does not exist in the source.
type NotFoundError struct {
	Column string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Column)
}

// StorageError wraps a failure from the backing store with the operation and
// table that failed. Use errors.As to detect it and Unwrap to reach the
// driver error.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
