package spacedb

import "errors"

var (
	// ErrDatabaseClosed is returned when a closed Database is asked for a new component.
	ErrDatabaseClosed = errors.New("database closed")

	// ErrKindRequired is returned when a Collection is created without a kind.
	ErrKindRequired = errors.New("collection kind required")
)
