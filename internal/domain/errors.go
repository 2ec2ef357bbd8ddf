// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates caller input violating a domain invariant.
// Per-package validation errors wrap this sentinel so the HTTP layer
// can map them to a 400 uniformly.
var ErrValidation = errors.New("validation failed")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")
