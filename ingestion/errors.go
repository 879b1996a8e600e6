package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when a repository is not provided.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrPipelineReleased is returned when Ingest is called after Release.
	ErrPipelineReleased = errors.New("pipeline released")
)
