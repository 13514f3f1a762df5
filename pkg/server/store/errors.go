package store

import "errors"

// ErrNotFound is returned when a record doesn't exist
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write violates a uniqueness constraint or
// loses an optimistic concurrency check
var ErrConflict = errors.New("record conflicts with existing data")
