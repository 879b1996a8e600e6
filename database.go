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

package spacedb

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/spacedb/config"
	"github.com/poiesic/spacedb/ingestion"
	"github.com/poiesic/spacedb/reindex"
	"github.com/poiesic/spacedb/storage"
	"github.com/poiesic/spacedb/storage/badger"
	"github.com/poiesic/spacedb/storage/file"
	"github.com/prometheus/client_golang/prometheus"
)

type Database struct {
	config  *config.Config
	repo    storage.Repository
	closers []func() error
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	config     *config.Config
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// WithConfig sets the database configuration. A non-empty dir passed to
// NewDatabase overrides config.Dir.
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.config = cfg
	}
}

// WithLogger sets the logger used by the database and everything it creates.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithRegisterer registers repository metrics on registerer.
func WithRegisterer(registerer prometheus.Registerer) DatabaseOption {
	return func(o *databaseOptions) {
		o.registerer = registerer
	}
}

func NewDatabase(dir string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	cfg := config.DefaultConfig()
	if options.config != nil {
		copied := *options.config
		cfg = &copied
	}
	if dir != "" {
		cfg.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	db := &Database{
		config: cfg,
		logger: options.logger,
	}
	if err := db.openRepository(options.registerer); err != nil {
		return nil, err
	}
	return db, nil
}

// openRepository opens the storage engine named by the config.
func (db *Database) openRepository(registerer prometheus.Registerer) error {
	cfg := db.config
	switch cfg.Backend {
	case config.BackendBadger, config.BackendMemory:
		backend, err := badger.OpenBackend(cfg.Dir, cfg.Backend == config.BackendMemory, db.logger)
		if err != nil {
			return err
		}
		repo, err := badger.NewRepository(backend,
			badger.WithLogger(db.logger),
			badger.WithRegisterer(registerer),
		)
		if err != nil {
			backend.Close()
			return err
		}
		db.repo = repo
		db.closers = []func() error{repo.Close, backend.Close}
	default:
		repo, err := file.OpenRepository(cfg.Dir,
			file.WithFileNames(cfg.LogFile, cfg.TimeIndexFile, cfg.SpatialIndexFile),
			file.WithLogger(db.logger),
			file.WithRegisterer(registerer),
		)
		if err != nil {
			return err
		}
		db.repo = repo
	}
	db.logger.Debug("database opened", "backend", cfg.Backend, "dir", cfg.Dir)
	return nil
}

// Close releases the storage engine. The file backend opens files per
// operation and holds nothing. Calling Close more than once is safe.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var errs []error
	for _, closeFn := range db.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	db.logger.Debug("database closed", "dir", db.config.Dir)
	return errors.Join(errs...)
}

func (db *Database) Config() config.Config {
	return *db.config
}

func (db *Database) Repository() storage.Repository {
	return db.repo
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	if db.isClosed() {
		return nil, ErrDatabaseClosed
	}
	defaults := []ingestion.Option{
		ingestion.WithPoolSize(db.config.PoolSize),
		ingestion.WithLogger(db.logger),
	}
	return ingestion.NewPipeline(db.repo, append(defaults, opts...)...)
}

func (db *Database) NewReindexer(cfg *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	if db.isClosed() {
		return nil, ErrDatabaseClosed
	}
	return reindex.NewReindexer(db.repo, cfg, progress, db.logger)
}

func (db *Database) isClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}
