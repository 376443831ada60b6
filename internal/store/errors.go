package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user with an email that is
// already registered. The users table carries a unique index on email, so
// the invariant holds even across concurrent signups.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrSoldOut is returned when a booking asks for more seats than the event
// has left.
var ErrSoldOut = errors.New("not enough seats left")
