package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a saved filter was removed on the server
	// while the session still referenced it.
	ErrConflict = errors.New("saved filter no longer exists")

	errMissingID = errors.New("response has no document id")
)

// Error is returned for failed document service requests. Status is zero
// when no response was received.
type Error struct {
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("persistence error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("persistence error: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
