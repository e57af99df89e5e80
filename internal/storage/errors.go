package storage

import "errors"

// Common storage errors
var (
	// ErrNotFound indicates that no record matched the request
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidURI indicates that a tube URI could not be parsed
	ErrInvalidURI = errors.New("invalid tube uri")

	// ErrAlreadyExists indicates that a record with the same id is already stored
	ErrAlreadyExists = errors.New("record already exists")

	// ErrMissingID indicates that an update was requested for a record without id
	ErrMissingID = errors.New("record has no id")
)
