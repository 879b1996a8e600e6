package reindex

import "errors"

var (
	// ErrRepositoryRequired is returned when a repository is not provided.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
