// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/spacedb/storage"
)

// Config holds configuration for a reindex run.
type Config struct {
	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxAttempts is the number of times the rebuild is tried before giving up
	MaxAttempts int

	// RetryDelay is the base delay for exponential backoff between attempts
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReportInterval: 100,
		MaxAttempts:    3,
		RetryDelay:     time.Second,
	}
}

// Reindexer rebuilds the indices of a repository from its log.
type Reindexer struct {
	repo     storage.Repository
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(repo storage.Repository, config *Config, progress io.Writer, logger *slog.Logger) (*Reindexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reindexer{
		repo:     repo,
		config:   config,
		progress: progress,
		logger:   logger,
	}, nil
}

// Run rebuilds both indices and returns the number of records indexed.
func (r *Reindexer) Run(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	total, err := r.repo.Count()
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in log (0 records)\n")
	} else {
		fmt.Fprintf(r.progress, "Starting reindex of %d records\n", total)
	}

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	var indexed int
	err = retry(ctx, r.logger, r.config.MaxAttempts, r.config.RetryDelay, func() error {
		tracker.Start()
		n, err := r.repo.Rebuild(tracker.Update)
		indexed = n
		return err
	})
	if err != nil {
		return indexed, fmt.Errorf("failed to rebuild indices: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Indexed %d of %d records in %v\n",
		indexed, total, elapsed.Round(time.Millisecond))
	if skipped := total - indexed; skipped > 0 {
		r.logger.Warn("records skipped during reindex", "skipped", skipped)
	}

	return indexed, nil
}
