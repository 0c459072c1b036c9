package search

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed search request.
type ErrorKind int

const (
	// KindNetwork means no response was received.
	KindNetwork ErrorKind = iota
	// KindService means the service answered with a non-success status or an
	// unreadable body.
	KindService
)

func (k ErrorKind) String() string {
	if k == KindNetwork {
		return "network"
	}
	return "service"
}

// Error is returned by Client for every failed request.
type Error struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("search %s error (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("search %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	if e.Kind == KindNetwork {
		return true
	}
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a retryable search error.
func IsRetryable(err error) bool {
	var searchErr *Error
	if errors.As(err, &searchErr) {
		return searchErr.Retryable()
	}
	return false
}
