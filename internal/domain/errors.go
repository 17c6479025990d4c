// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested task or project does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates caller input was rejected.
var ErrValidation = errors.New("validation error")

// ErrMalformed indicates an on-disk record could not be decoded.
// Readers treat it as absence of the record.
var ErrMalformed = errors.New("malformed record")

// ErrConflict indicates the request collides with an existing record.
var ErrConflict = errors.New("conflict")
