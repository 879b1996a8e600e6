package spacedb

import (
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/poiesic/spacedb/core"
	"github.com/poiesic/spacedb/storage"
)

// Entry is a typed record: a value pinned to a time and place.
type Entry[T any] struct {
	Timestamp int64
	Latitude  float64
	Longitude float64
	Value     T
}

// Collection stores values of one type under a kind tag. The indices are
// shared by every kind, so queries read all matching records and drop those
// of other kinds after the repository limit has been applied.
type Collection[T any] struct {
	repo   storage.Repository
	kind   string
	logger *slog.Logger
}

// NewCollection returns the collection of kind in db.
func NewCollection[T any](db *Database, kind string) (*Collection[T], error) {
	if kind == "" {
		return nil, ErrKindRequired
	}
	return &Collection[T]{
		repo:   db.Repository(),
		kind:   kind,
		logger: db.logger.With("kind", kind),
	}, nil
}

// Kind returns the tag written into every record of the collection.
func (c *Collection[T]) Kind() string {
	return c.kind
}

// NewRecord converts entry into a record of this collection's kind, for
// callers that batch records through an ingestion pipeline.
func (c *Collection[T]) NewRecord(entry Entry[T]) (*core.Record, error) {
	payload, err := json.Marshal(entry.Value)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", c.kind, err)
	}
	return &core.Record{
		Timestamp: entry.Timestamp,
		Latitude:  entry.Latitude,
		Longitude: entry.Longitude,
		Kind:      c.kind,
		Payload:   payload,
	}, nil
}

// Add stores entry with its value encoded as JSON.
func (c *Collection[T]) Add(entry Entry[T]) (core.Offset, error) {
	record, err := c.NewRecord(entry)
	if err != nil {
		return 0, err
	}
	return c.repo.Add(record)
}

// FindByTime returns entries with start <= Timestamp <= end in timestamp order.
func (c *Collection[T]) FindByTime(start, end int64, limit int) ([]Entry[T], error) {
	records, err := c.repo.FindByTime(start, end, limit)
	if err != nil {
		return nil, err
	}
	return c.decode(records), nil
}

// FindByLocation returns the latest entry at each coordinate within rangeMeters of (lat, lon).
func (c *Collection[T]) FindByLocation(lat, lon, rangeMeters float64, limit int) ([]Entry[T], error) {
	records, err := c.repo.FindByLocation(lat, lon, rangeMeters, limit)
	if err != nil {
		return nil, err
	}
	return c.decode(records), nil
}

func (c *Collection[T]) decode(records []*core.Record) []Entry[T] {
	entries := make([]Entry[T], 0, len(records))
	for _, r := range records {
		if r.Kind != c.kind {
			continue
		}
		var value T
		if err := json.Unmarshal(r.Payload, &value); err != nil {
			c.logger.Warn("skipping undecodable value", "timestamp", r.Timestamp, "error", err)
			continue
		}
		entries = append(entries, Entry[T]{
			Timestamp: r.Timestamp,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Value:     value,
		})
	}
	return entries
}
