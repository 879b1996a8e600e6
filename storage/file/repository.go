package file

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultLogFile          = "records.log"
	DefaultTimeIndexFile    = "timeseries.idx"
	DefaultSpatialIndexFile = "spatial.idx"
)

// Repository is the file-backed storage.Repository. One mutex guards
// every operation for its full duration, including file I/O.
type Repository struct {
	mu           sync.Mutex
	dir          string
	log          *Log
	timeIndex    *TimeIndex
	spatialIndex *SpatialIndex
	logger       *slog.Logger
	metrics      *storage.RepositoryMetrics
}

var _ storage.Repository = (*Repository)(nil)

type repositoryOptions struct {
	logger           *slog.Logger
	registerer       prometheus.Registerer
	logFile          string
	timeIndexFile    string
	spatialIndexFile string
}

// Option configures a Repository.
type Option func(*repositoryOptions)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *repositoryOptions) {
		o.logger = logger
	}
}

// WithRegisterer registers repository metrics on registerer.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(o *repositoryOptions) {
		o.registerer = registerer
	}
}

// WithFileNames overrides the file names used inside the repository directory.
// Empty names keep their defaults.
func WithFileNames(logFile, timeIndexFile, spatialIndexFile string) Option {
	return func(o *repositoryOptions) {
		if logFile != "" {
			o.logFile = logFile
		}
		if timeIndexFile != "" {
			o.timeIndexFile = timeIndexFile
		}
		if spatialIndexFile != "" {
			o.spatialIndexFile = spatialIndexFile
		}
	}
}

// OpenRepository opens a repository rooted at dir, creating the directory
// if needed. Files are created lazily on first write.
func OpenRepository(dir string, opts ...Option) (*Repository, error) {
	o := repositoryOptions{
		logFile:          DefaultLogFile,
		timeIndexFile:    DefaultTimeIndexFile,
		spatialIndexFile: DefaultSpatialIndexFile,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	logger := o.logger.With("dir", dir)
	return &Repository{
		dir:          dir,
		log:          NewLog(filepath.Join(dir, o.logFile)),
		timeIndex:    NewTimeIndex(filepath.Join(dir, o.timeIndexFile), logger),
		spatialIndex: NewSpatialIndex(filepath.Join(dir, o.spatialIndexFile), logger),
		logger:       logger,
		metrics:      storage.NewRepositoryMetrics(o.registerer),
	}, nil
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Add appends the record and indexes it by time and then by location.
// An index failure leaves the record in the log; Rebuild recovers it.
func (r *Repository) Add(record *core.Record) (core.Offset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	off, err := r.add(record)
	if err != nil {
		r.metrics.AddFailures.Inc()
		return 0, err
	}
	r.metrics.RecordsAdded.Inc()
	return off, nil
}

func (r *Repository) add(record *core.Record) (core.Offset, error) {
	body, err := storage.EncodeRecord(record)
	if err != nil {
		return 0, err
	}
	if err := r.prepareIndices(); err != nil {
		return 0, err
	}
	off, err := r.log.Append(body)
	if err != nil {
		return 0, err
	}
	if err := r.timeIndex.Add(record.Timestamp, off); err != nil {
		return 0, fmt.Errorf("index timestamp of offset %d: %w", off, err)
	}
	if err := r.spatialIndex.Add(record.Latitude, record.Longitude, off); err != nil {
		return 0, fmt.Errorf("index location of offset %d: %w", off, err)
	}
	return off, nil
}

// FindByTime returns records with start <= Timestamp <= end in ascending
// timestamp order. An empty time index is answered by scanning the log.
func (r *Repository) FindByTime(start, end int64, limit int) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.metrics.ObserveQuery(storage.QueryTime, time.Now())

	limit = storage.ClampLimit(limit)

	var records []*core.Record
	offs, err := r.timeIndex.Lookup(start, end, limit)
	switch {
	case err != nil:
		r.logger.Warn("time index lookup failed, scanning log", "error", err)
		fallthrough
	case r.timeIndex.Len() == 0:
		records, err = r.scanTime(start, end)
		if err != nil {
			return nil, err
		}
	default:
		records = r.readOffsets(offs)
	}

	slices.SortStableFunc(records, func(a, b *core.Record) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// FindByLocation returns the latest record at each coordinate within
// rangeMeters of (lat, lon). A negative range means storage.DefaultRangeMeters.
// An empty spatial index is answered by scanning the log.
func (r *Repository) FindByLocation(lat, lon, rangeMeters float64, limit int) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.metrics.ObserveQuery(storage.QueryLocation, time.Now())

	limit = storage.ClampLimit(limit)
	rangeMeters = storage.NormalizeRange(rangeMeters)

	offs, err := r.spatialIndex.Lookup(lat, lon, rangeMeters, limit)
	if err != nil {
		r.logger.Warn("spatial index lookup failed, scanning log", "error", err)
		return r.scanLocation(lat, lon, rangeMeters, limit)
	}
	if r.spatialIndex.Len() == 0 {
		return r.scanLocation(lat, lon, rangeMeters, limit)
	}
	return r.readOffsets(offs), nil
}

// prepareIndices hydrates both indices before the log is touched. An index
// file that fails to parse is rebuilt from the log.
func (r *Repository) prepareIndices() error {
	err := errors.Join(r.timeIndex.ensureHydrated(), r.spatialIndex.ensureHydrated())
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrCorrupt) {
		return err
	}
	r.logger.Warn("index unreadable, rebuilding from log", "error", err)
	if _, err := r.rebuild(nil); err != nil {
		return fmt.Errorf("recover indices: %w", err)
	}
	return nil
}

// Rebuild recreates both indices from the log, writing each index file
// once. Frames that fail to decode are skipped.
func (r *Repository) Rebuild(progress func(done int)) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rebuild(progress)
}

func (r *Repository) rebuild(progress func(done int)) (int, error) {
	var times []timeEntry
	var coords []spatialEntry
	err := r.scan(func(off core.Offset, record *core.Record) error {
		times = append(times, timeEntry{ts: record.Timestamp, off: off})
		coords = append(coords, spatialEntry{key: record.Coordinate(), off: off})
		if progress != nil {
			progress(len(times))
		}
		return nil
	})
	if err != nil {
		return len(times), err
	}

	if err := r.timeIndex.replace(times); err != nil {
		return len(times), err
	}
	if err := r.spatialIndex.replace(coords); err != nil {
		return len(times), err
	}

	r.logger.Info("indices rebuilt", "records", len(times),
		"timestamps", r.timeIndex.Len(), "coordinates", r.spatialIndex.Len())
	return len(times), nil
}

// Count returns the number of complete frames in the log.
func (r *Repository) Count() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scanner, err := r.log.Scan()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer scanner.Close()

	n := 0
	for scanner.Next() {
		n++
	}
	if err := scanner.Err(); err != nil {
		if !errors.Is(err, storage.ErrCorrupt) {
			return n, err
		}
		r.logger.Warn("log ends with a partial frame", "error", err)
	}
	return n, nil
}

// readOffsets loads each offset, skipping any that cannot be read or decoded.
func (r *Repository) readOffsets(offs []core.Offset) []*core.Record {
	records := make([]*core.Record, 0, len(offs))
	for _, off := range offs {
		body, err := r.log.ReadAt(off)
		if err == nil {
			var record *core.Record
			record, err = storage.DecodeRecord(body)
			if err == nil {
				records = append(records, record)
				continue
			}
		}
		r.metrics.SkippedOffsets.Inc()
		r.logger.Warn("skipping unreadable record", "offset", off, "error", err)
	}
	return records
}

func (r *Repository) scanTime(start, end int64) ([]*core.Record, error) {
	r.metrics.FallbackScans.WithLabelValues(storage.QueryTime).Inc()
	r.logger.Debug("scanning log for time range", "start", start, "end", end)

	var records []*core.Record
	err := r.scan(func(_ core.Offset, record *core.Record) error {
		if record.Timestamp >= start && record.Timestamp <= end {
			records = append(records, record)
		}
		return nil
	})
	return records, err
}

func (r *Repository) scanLocation(lat, lon, rangeMeters float64, limit int) ([]*core.Record, error) {
	r.metrics.FallbackScans.WithLabelValues(storage.QueryLocation).Inc()
	r.logger.Debug("scanning log for location", "lat", lat, "lon", lon, "range", rangeMeters)

	var order []core.Coordinate
	latest := make(map[core.Coordinate]*core.Record)
	err := r.scan(func(_ core.Offset, record *core.Record) error {
		key := record.Coordinate()
		if _, ok := latest[key]; !ok {
			order = append(order, key)
		}
		latest[key] = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	var records []*core.Record
	for _, key := range order {
		if !(core.HaversineDistance(lat, lon, key.Latitude, key.Longitude) <= rangeMeters) {
			continue
		}
		records = append(records, latest[key])
		if len(records) >= limit {
			break
		}
	}
	return records, nil
}

// scan decodes every frame in order and passes it to fn. A missing log is
// empty, undecodable frames are skipped and a torn tail ends the scan.
func (r *Repository) scan(fn func(off core.Offset, record *core.Record) error) error {
	scanner, err := r.log.Scan()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	defer scanner.Close()

	for scanner.Next() {
		record, err := storage.DecodeRecord(scanner.Frame())
		if err != nil {
			r.metrics.SkippedOffsets.Inc()
			r.logger.Warn("skipping undecodable frame", "offset", scanner.Offset(), "error", err)
			continue
		}
		if err := fn(scanner.Offset(), record); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if !errors.Is(err, storage.ErrCorrupt) {
			return err
		}
		r.logger.Warn("log ends with a partial frame", "error", err)
	}
	return nil
}
