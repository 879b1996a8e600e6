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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	// BackendFile keeps records in an append-only log with flat index files.
	BackendFile = "file"

	// BackendBadger keeps records and index keys in a BadgerDB directory.
	BackendBadger = "badger"

	// BackendMemory keeps records in an in-memory BadgerDB. Nothing persists.
	BackendMemory = "memory"
)

// Config holds the on-disk layout and runtime settings of a database.
type Config struct {
	// Dir is the directory holding the log and index files.
	Dir string `yaml:"dir"`

	// Backend selects the storage engine: "file", "badger" or "memory".
	// Default: "file"
	Backend string `yaml:"backend"`

	// LogFile is the record log file name inside Dir.
	// Default: "records.log"
	LogFile string `yaml:"log_file"`

	// TimeIndexFile is the time-series index file name inside Dir.
	// Default: "timeseries.idx"
	TimeIndexFile string `yaml:"time_index_file"`

	// SpatialIndexFile is the spatial index file name inside Dir.
	// Default: "spatial.idx"
	SpatialIndexFile string `yaml:"spatial_index_file"`

	// PoolSize is the number of ingestion workers.
	// Default: runtime.NumCPU() / 2, at least 1
	PoolSize int `yaml:"pool_size"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithDir sets the database directory.
func WithDir(dir string) ConfigOption {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithBackend sets the storage engine.
func WithBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithLogFile sets the record log file name.
func WithLogFile(name string) ConfigOption {
	return func(c *Config) {
		c.LogFile = name
	}
}

// WithTimeIndexFile sets the time-series index file name.
func WithTimeIndexFile(name string) ConfigOption {
	return func(c *Config) {
		c.TimeIndexFile = name
	}
}

// WithSpatialIndexFile sets the spatial index file name.
func WithSpatialIndexFile(name string) ConfigOption {
	return func(c *Config) {
		c.SpatialIndexFile = name
	}
}

// WithPoolSize sets the number of ingestion workers.
func WithPoolSize(size int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = size
	}
}

// DefaultConfig returns a Config with the default file names and no directory.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		Backend:          BackendFile,
		LogFile:          "records.log",
		TimeIndexFile:    "timeseries.idx",
		SpatialIndexFile: "spatial.idx",
		PoolSize:         poolSize,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithDir("/var/lib/spacedb"),
//	    WithPoolSize(4),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendBadger:
		if c.Dir == "" {
			return errors.New("config: Dir is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	for name, file := range map[string]string{
		"LogFile":          c.LogFile,
		"TimeIndexFile":    c.TimeIndexFile,
		"SpatialIndexFile": c.SpatialIndexFile,
	} {
		if file == "" {
			return fmt.Errorf("config: %s is required", name)
		}
		if filepath.Base(file) != file {
			return fmt.Errorf("config: %s must be a file name, got %q", name, file)
		}
	}
	if c.LogFile == c.TimeIndexFile || c.LogFile == c.SpatialIndexFile || c.TimeIndexFile == c.SpatialIndexFile {
		return errors.New("config: log and index file names must differ")
	}
	if c.PoolSize < 1 {
		return errors.New("config: PoolSize must be at least 1")
	}
	return nil
}
