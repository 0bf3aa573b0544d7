package hn

import (
	"errors"
	"fmt"
)

// TransientFetchError is returned for network failures, non-2xx responses
// and undecodable bodies. The caller may retry the same request later.
type TransientFetchError struct {
	Op         string // "item", "maxitem", "list"
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("hn: %s %s: HTTP %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("hn: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err wraps a TransientFetchError.
func IsTransient(err error) bool {
	var tfe *TransientFetchError
	return errors.As(err, &tfe)
}
