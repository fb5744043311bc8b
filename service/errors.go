package service

import (
	"fmt"

	"matchbook/domain/book"
)

// ErrNotFound is returned by Cancel when the order id is not resting
// anywhere: unknown, already filled, or already canceled.
var ErrNotFound = book.ErrNotFound

// PersistenceError reports a durable write or read that did not
// complete. For a submit this can mean the match already happened in
// memory; the caller must treat the operation as failed and either
// retry with the same request id or restart the engine, which
// reconciles from the journal. It must never blind-retry without a
// request id.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
