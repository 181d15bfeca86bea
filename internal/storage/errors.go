package storage

import "errors"

// ErrNotFound is returned when a record that must exist does not.
var ErrNotFound = errors.New("record not found")
