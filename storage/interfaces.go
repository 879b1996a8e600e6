package storage

import (
	"github.com/poiesic/spacedb/core"
)

// RecordLog is an append-only sequence of length-prefixed frames.
// Offsets returned by Append are stable for the life of the log.
type RecordLog interface {
	// Append writes one frame and returns the offset at which it starts.
	Append(body []byte) (core.Offset, error)

	// ReadAt returns the frame body starting at off.
	// Returns ErrNotFound if the log or offset does not exist and
	// ErrCorrupt if the frame is truncated.
	ReadAt(off core.Offset) ([]byte, error)

	// Size returns the current log size in bytes, or 0 if the log does not exist.
	Size() (int64, error)
}

// TimeIndex maps millisecond timestamps to the offsets of records carrying them.
type TimeIndex interface {
	// Add records that a frame at off carries timestamp ts.
	Add(ts int64, off core.Offset) error

	// Lookup returns offsets for timestamps in [start, end], in ascending
	// timestamp order, insertion order within a timestamp.
	Lookup(start, end int64, limit int) ([]core.Offset, error)

	// Len returns the number of offsets held.
	Len() int

	// Reset removes every entry, including the backing file.
	Reset() error
}

// SpatialIndex maps exact coordinates to the offset of the latest record there.
type SpatialIndex interface {
	// Add points (lat, lon) at off, replacing any earlier offset for the same key.
	Add(lat, lon float64, off core.Offset) error

	// Lookup returns offsets whose coordinate lies within rangeMeters of (lat, lon).
	Lookup(lat, lon, rangeMeters float64, limit int) ([]core.Offset, error)

	// Len returns the number of coordinates held.
	Len() int

	// Reset removes every entry, including the backing file.
	Reset() error
}

// Repository stores records and answers time range and radius queries.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Add appends a record to the log and indexes it.
	// Returns core.ErrNullRecord for a nil record.
	Add(record *core.Record) (core.Offset, error)

	// FindByTime returns records with start <= Timestamp <= end,
	// ordered by timestamp, at most limit of them.
	// Unreadable records are skipped.
	FindByTime(start, end int64, limit int) ([]*core.Record, error)

	// FindByLocation returns the latest record at each coordinate within
	// rangeMeters of (lat, lon), at most limit of them.
	// A negative range means DefaultRangeMeters.
	FindByLocation(lat, lon, rangeMeters float64, limit int) ([]*core.Record, error)

	// Rebuild recreates both indices from the log and returns the number
	// of records indexed. progress, if non-nil, is called after each record.
	Rebuild(progress func(done int)) (int, error)

	// Count returns the number of frames in the log.
	Count() (int, error)
}
