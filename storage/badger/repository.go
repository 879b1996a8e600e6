package badger

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
	"github.com/prometheus/client_golang/prometheus"
)

var errMalformedSeq = fmt.Errorf("%w: index value is not a sequence number", storage.ErrCorrupt)

// Repository implements storage.Repository on BadgerDB.
// Offsets are sequence numbers rather than byte positions; each record and
// its index keys are written in one transaction.
type Repository struct {
	mu      sync.Mutex
	backend *Backend
	idSeq   *badger.Sequence
	logger  *slog.Logger
	metrics *storage.RepositoryMetrics
}

var _ storage.Repository = (*Repository)(nil)

type repositoryOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Option configures a Repository.
type Option func(*repositoryOptions)

// WithLogger sets the logger. Defaults to the backend's logger.
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

// NewRepository creates a Repository on backend.
// The caller closes the repository before the backend.
func NewRepository(backend *Backend, opts ...Option) (*Repository, error) {
	o := repositoryOptions{logger: backend.logger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	idSeq, err := backend.GetSequence(recordIDSeq)
	if err != nil {
		return nil, err
	}

	return &Repository{
		backend: backend,
		idSeq:   idSeq,
		logger:  o.logger.With("backend", "badger"),
		metrics: storage.NewRepositoryMetrics(o.registerer),
	}, nil
}

// Close releases the ID sequence.
func (r *Repository) Close() error {
	return r.idSeq.Release()
}

// Add stores the record with its time and location keys.
func (r *Repository) Add(record *core.Record) (core.Offset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq, err := r.add(record)
	if err != nil {
		r.metrics.AddFailures.Inc()
		return 0, err
	}
	r.metrics.RecordsAdded.Inc()
	return seq, nil
}

func (r *Repository) add(record *core.Record) (core.Offset, error) {
	body, err := storage.EncodeRecord(record)
	if err != nil {
		return 0, err
	}
	seq, err := r.nextSeq()
	if err != nil {
		return 0, err
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRecordKey(seq), body); err != nil {
			return err
		}
		if err := tx.Set(makeTimeKey(record.Timestamp, seq), nil); err != nil {
			return err
		}
		if err := tx.Set(makeLocationKey(record.Latitude, record.Longitude), marshalSeq(seq)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *Repository) nextSeq() (core.Offset, error) {
	next, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if next == 0 {
		next, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.Offset(next), nil
}

// FindByTime returns records with start <= Timestamp <= end in ascending
// timestamp order, insertion order within a timestamp.
func (r *Repository) FindByTime(start, end int64, limit int) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.metrics.ObserveQuery(storage.QueryTime, time.Now())

	limit = storage.ClampLimit(limit)
	if start > end {
		return []*core.Record{}, nil
	}

	var records []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialTimeKey(start)
		endKey := makePartialTimeKey(end)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordTimePrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var seqs []core.Offset
		for iter.Seek(startKey); iter.Valid() && len(seqs) < limit; iter.Next() {
			key := iter.Item().Key()
			if bytes.Compare(key[:len(endKey)], endKey) > 0 {
				break
			}
			seqs = append(seqs, timeKeySeq(key))
		}

		var err error
		records, err = r.readRecords(tx, seqs)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindByLocation returns the latest record at each coordinate within
// rangeMeters of (lat, lon), ordered by when that record was added.
// A negative range means storage.DefaultRangeMeters.
func (r *Repository) FindByLocation(lat, lon, rangeMeters float64, limit int) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.metrics.ObserveQuery(storage.QueryLocation, time.Now())

	limit = storage.ClampLimit(limit)
	rangeMeters = storage.NormalizeRange(rangeMeters)
	query := core.Coordinate{Latitude: lat, Longitude: lon}

	var records []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordLocationPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var seqs []core.Offset
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !(locationKeyCoordinate(item.Key()).Distance(query) <= rangeMeters) {
				continue
			}
			var seq core.Offset
			if err := item.Value(func(val []byte) error {
				var err error
				seq, err = unmarshalSeq(val)
				return err
			}); err != nil {
				return err
			}
			seqs = append(seqs, seq)
		}

		slices.SortFunc(seqs, cmp.Compare[core.Offset])
		if len(seqs) > limit {
			seqs = seqs[:limit]
		}

		var err error
		records, err = r.readRecords(tx, seqs)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Rebuild drops the time and location keys and recreates them from the
// stored records. Records that fail to decode are skipped.
func (r *Repository) Rebuild(progress func(done int)) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.backend.DropPrefix(recordTimePrefix, recordLocationPrefix); err != nil {
		return 0, err
	}

	wb := r.backend.NewWriteBatch()
	defer wb.Cancel()

	indexed := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			seq := recordKeySeq(item.Key())

			var record *core.Record
			err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.DecodeRecord(val)
				return err
			})
			if err != nil {
				r.logger.Warn("skipping undecodable record", "offset", seq, "error", err)
				continue
			}

			if err := wb.Set(makeTimeKey(record.Timestamp, seq), nil); err != nil {
				return err
			}
			if err := wb.Set(makeLocationKey(record.Latitude, record.Longitude), marshalSeq(seq)); err != nil {
				return err
			}
			indexed++
			if progress != nil {
				progress(indexed)
			}
		}
		return nil
	}, false)
	if err != nil {
		return indexed, err
	}
	if err := wb.Flush(); err != nil {
		return indexed, err
	}

	r.logger.Info("indices rebuilt", "records", indexed)
	return indexed, nil
}

// Count returns the number of stored records.
func (r *Repository) Count() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			n++
		}
		return nil
	}, false)
	return n, err
}

// readRecords loads each sequence number, skipping records that are
// missing or fail to decode.
func (r *Repository) readRecords(tx *badger.Txn, seqs []core.Offset) ([]*core.Record, error) {
	records := make([]*core.Record, 0, len(seqs))
	for _, seq := range seqs {
		record, err := r.readRecord(tx, seq)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrMalformedRecord) {
				return nil, err
			}
			r.metrics.SkippedOffsets.Inc()
			r.logger.Warn("skipping unreadable record", "offset", seq, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *Repository) readRecord(tx *badger.Txn, seq core.Offset) (*core.Record, error) {
	item, err := tx.Get(makeRecordKey(seq))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: record %d", storage.ErrNotFound, seq)
		}
		return nil, err
	}

	var record *core.Record
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.DecodeRecord(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
