package book

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a cancel for an id that is not resting in any
// side of the book: already filled, already canceled, or never seen.
var ErrNotFound = errors.New("order not found")

// ValidationError rejects an order before it touches book state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
