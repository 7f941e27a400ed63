// Package apperr holds the sentinel errors shared across casedeck packages.
package apperr

import "errors"

// Network operation failures. A non-2xx response and a transport failure
// both wrap the same sentinel.
var (
	ErrFetch  = errors.New("failed to fetch test cases")
	ErrCreate = errors.New("failed to create test case")
	ErrUpdate = errors.New("failed to update test case")
	ErrDelete = errors.New("failed to delete test case")
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)
