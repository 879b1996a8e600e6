package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
)

// Pipeline ingests batches of records through a worker pool.
type Pipeline struct {
	repository storage.Repository
	pool       *ants.Pool
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline writing to repository.
func NewPipeline(repository storage.Repository, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository: repository,
		pool:       pool,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest stores every record and returns their offsets in input order.
// The offset of a failed record is zero. Records not yet submitted when ctx
// is done are reported with the context error.
func (p *Pipeline) Ingest(ctx context.Context, records ...*core.Record) ([]core.Offset, error) {
	if p.pool == nil || p.pool.IsClosed() {
		return nil, ErrPipelineReleased
	}

	offsets := make([]core.Offset, len(records))
	errs := make([]error, len(records))

	var wg sync.WaitGroup
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			off, err := p.repository.Add(record)
			if err != nil {
				errs[i] = err
				return
			}
			offsets[i] = off
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	var failed []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		p.logger.Error("error ingesting record", "index", i, "err", err)
		failed = append(failed, fmt.Errorf("record %d: %w", i, err))
	}

	p.logger.Debug("batch ingested", "records", len(records), "failed", len(failed))
	return offsets, errors.Join(failed...)
}

// Running returns the number of workers currently busy.
func (p *Pipeline) Running() int {
	if p.pool == nil {
		return 0
	}
	return p.pool.Running()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
