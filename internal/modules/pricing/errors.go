package pricing

import "fmt"

// ValidationError rejects a malformed request before any work is done.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CatalogError is a failed read of the external catalog that aborts the whole
// operation. Per-variant write failures during bulk operations are not
// CatalogErrors; they are collected in the operation's error list instead.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string { return fmt.Sprintf("catalog unavailable: %v", e.Err) }

func (e *CatalogError) Unwrap() error { return e.Err }

// PersistenceError is a failed record-store write. The local batch it belongs
// to is rolled back; catalog writes already performed are not.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failure: %v", e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }
